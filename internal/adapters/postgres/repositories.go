package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"modelmarket/internal/domain"
)

// UserRepository
func (db *DB) CreateUser(ctx context.Context, email, passwordHash string) (domain.User, error) {
	u := domain.User{Email: email, PasswordHash: passwordHash}
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash) VALUES ($1, $2)
		RETURNING id, created_at
	`, email, passwordHash).Scan(&u.ID, &u.CreatedAt)
	return u, mapErr(err)
}

func (db *DB) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return db.user(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email)
}

func (db *DB) UserByID(ctx context.Context, id string) (domain.User, error) {
	return db.user(ctx, `SELECT id, email, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (db *DB) user(ctx context.Context, query string, arg string) (domain.User, error) {
	var u domain.User
	err := db.Pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, mapErr(err)
}

// ProjectRepository
const projectColumns = `id, user_id, name, description, status, backend_tasks, created_at, updated_at`

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.Status, &p.BackendTasks, &p.CreatedAt, &p.UpdatedAt)
	if p.BackendTasks == nil {
		p.BackendTasks = []domain.BackendTask{}
	}
	return p, err
}

func (db *DB) ListProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (db *DB) GetProject(ctx context.Context, userID, id string) (domain.Project, error) {
	p, err := scanProject(db.Pool.QueryRow(ctx, `
		SELECT `+projectColumns+` FROM projects WHERE id = $1 AND user_id = $2`, id, userID))
	return p, mapErr(err)
}

func (db *DB) CreateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	out, err := scanProject(db.Pool.QueryRow(ctx, `
		INSERT INTO projects (user_id, name, description, status, backend_tasks)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+projectColumns, p.UserID, p.Name, p.Description, p.Status, tasksOrEmpty(p.BackendTasks)))
	return out, mapErr(err)
}

func (db *DB) UpdateProject(ctx context.Context, p domain.Project) (domain.Project, error) {
	out, err := scanProject(db.Pool.QueryRow(ctx, `
		UPDATE projects
		SET name = $3, description = $4, status = $5, backend_tasks = $6, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+projectColumns, p.ID, p.UserID, p.Name, p.Description, p.Status, tasksOrEmpty(p.BackendTasks)))
	return out, mapErr(err)
}

func (db *DB) DeleteProject(ctx context.Context, userID, id string) error {
	return db.deleteOwned(ctx, `DELETE FROM projects WHERE id = $1 AND user_id = $2`, id, userID)
}

func tasksOrEmpty(tasks []domain.BackendTask) []domain.BackendTask {
	if tasks == nil {
		return []domain.BackendTask{}
	}
	return tasks
}

func (db *DB) deleteOwned(ctx context.Context, query, id, userID string) error {
	tag, err := db.Pool.Exec(ctx, query, id, userID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows)
	}
	return nil
}

// DatasetRepository
const datasetColumns = `id, user_id, project_id, name, file_path, public_url, size_bytes, created_at`

func scanDataset(row pgx.Row) (domain.Dataset, error) {
	var d domain.Dataset
	err := row.Scan(&d.ID, &d.UserID, &d.ProjectID, &d.Name, &d.FilePath, &d.PublicURL, &d.SizeBytes, &d.CreatedAt)
	return d, err
}

func (db *DB) ListDatasets(ctx context.Context, userID string) ([]domain.Dataset, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+datasetColumns+` FROM datasets WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []domain.Dataset{}
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) CreateDataset(ctx context.Context, d domain.Dataset) (domain.Dataset, error) {
	out, err := scanDataset(db.Pool.QueryRow(ctx, `
		INSERT INTO datasets (user_id, project_id, name, file_path, public_url, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+datasetColumns, d.UserID, d.ProjectID, d.Name, d.FilePath, d.PublicURL, d.SizeBytes))
	return out, mapErr(err)
}

// DomainRepository
func (db *DB) GetOrCreateDomain(ctx context.Context, userID, registrable string) (domain.Domain, error) {
	registrable = strings.ToLower(registrable)
	var d domain.Domain
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO domains (user_id, registrable_domain)
		VALUES ($1, $2)
		ON CONFLICT (user_id, registrable_domain) DO UPDATE SET registrable_domain = EXCLUDED.registrable_domain
		RETURNING id, user_id, registrable_domain, verified, created_at
	`, userID, registrable).Scan(&d.ID, &d.UserID, &d.RegistrableDomain, &d.Verified, &d.CreatedAt)
	return d, mapErr(err)
}

func (db *DB) ListDomains(ctx context.Context, userID string) ([]domain.Domain, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, registrable_domain, verified, created_at
		FROM domains WHERE user_id = $1 ORDER BY registrable_domain`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []domain.Domain{}
	for rows.Next() {
		var d domain.Domain
		if err := rows.Scan(&d.ID, &d.UserID, &d.RegistrableDomain, &d.Verified, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (db *DB) DeleteDomain(ctx context.Context, userID, id string) error {
	return db.deleteOwned(ctx, `DELETE FROM domains WHERE id = $1 AND user_id = $2`, id, userID)
}
