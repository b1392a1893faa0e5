package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

const trainingColumns = `id, user_id, project_id, dataset_id, model_name, status, progress,
	attempts, error, queued_at, started_at, finished_at`

func scanTraining(row pgx.Row) (domain.TrainingJob, error) {
	var j domain.TrainingJob
	err := row.Scan(&j.ID, &j.UserID, &j.ProjectID, &j.DatasetID, &j.ModelName, &j.Status, &j.Progress,
		&j.Attempts, &j.Error, &j.QueuedAt, &j.StartedAt, &j.FinishedAt)
	return j, err
}

const enqueueTrainingSQL = `
	INSERT INTO training_jobs (user_id, project_id, dataset_id, model_name)
	SELECT $1, p.id, $3, $4 FROM projects p
	WHERE p.id = $2 AND p.user_id = $1
		AND ($3::uuid IS NULL OR EXISTS (SELECT 1 FROM datasets d WHERE d.id = $3 AND d.user_id = $1))
	RETURNING ` + trainingColumns

func (db *DB) EnqueueTraining(ctx context.Context, j domain.TrainingJob) (domain.TrainingJob, error) {
	// the project and the optional dataset must belong to the same user
	row := db.Pool.QueryRow(ctx, enqueueTrainingSQL, j.UserID, j.ProjectID, j.DatasetID, j.ModelName)
	out, err := scanTraining(row)
	return out, mapErr(err)
}

func (db *DB) ListTraining(ctx context.Context, userID string) ([]domain.TrainingJob, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+trainingColumns+` FROM training_jobs
		WHERE user_id = $1 ORDER BY queued_at DESC`, userID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []domain.TrainingJob{}
	for rows.Next() {
		j, err := scanTraining(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (db *DB) GetTraining(ctx context.Context, userID, id string) (domain.TrainingJob, error) {
	j, err := scanTraining(db.Pool.QueryRow(ctx, `
		SELECT `+trainingColumns+` FROM training_jobs WHERE id = $1 AND user_id = $2`, id, userID))
	return j, mapErr(err)
}

// CancelTraining moves a queued or running job to cancelled. Finished jobs yield ErrConflict.
func (db *DB) CancelTraining(ctx context.Context, userID, id string) error {
	return db.withTx(ctx, func(tx pgx.Tx) error {
		var status domain.JobStatus
		err := tx.QueryRow(ctx, `
			SELECT status FROM training_jobs WHERE id = $1 AND user_id = $2 FOR UPDATE`, id, userID).Scan(&status)
		if err != nil {
			return mapErr(err)
		}
		if status != domain.JobQueued && status != domain.JobRunning {
			return ports.ErrConflict
		}
		_, err = tx.Exec(ctx, `
			UPDATE training_jobs SET status = 'cancelled', finished_at = now() WHERE id = $1`, id)
		return err
	})
}

// ClaimNextTraining selects the oldest queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNextTraining(ctx context.Context) (job domain.TrainingJob, found bool, err error) {
	err = db.withTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `
			SELECT id FROM training_jobs
			WHERE status = 'queued'
			ORDER BY queued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1`).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		job, err = scanTraining(tx.QueryRow(ctx, `
			UPDATE training_jobs
			SET status = 'running', started_at = COALESCE(started_at, now()), attempts = attempts + 1
			WHERE id = $1
			RETURNING `+trainingColumns, id))
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return job, found, err
}

func (db *DB) UpdateTrainingProgress(ctx context.Context, id string, progress float64) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE training_jobs SET progress = $2 WHERE id = $1 AND status = 'running'`, id, progress)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrConflict
	}
	return nil
}

func (db *DB) CompleteTraining(ctx context.Context, id string) error {
	return db.finishTraining(ctx, id, domain.JobCompleted, "")
}

func (db *DB) FailTraining(ctx context.Context, id string, reason string) error {
	return db.finishTraining(ctx, id, domain.JobFailed, reason)
}

func (db *DB) finishTraining(ctx context.Context, id string, status domain.JobStatus, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	progress := "progress"
	if status == domain.JobCompleted {
		progress = "1"
	}
	tag, err := db.Pool.Exec(ctx, `
		UPDATE training_jobs
		SET status = $2, error = $3, progress = `+progress+`, finished_at = now()
		WHERE id = $1 AND status = 'running'`, id, status, reason)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrConflict
	}
	return nil
}
