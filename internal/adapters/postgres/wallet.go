package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

// Wallet returns the user's balance. Users without a wallet row have zero tokens.
func (db *DB) Wallet(ctx context.Context, userID string) (domain.Wallet, error) {
	w := domain.Wallet{UserID: userID}
	err := db.Pool.QueryRow(ctx, `
		SELECT balance, updated_at FROM wallets WHERE user_id = $1`, userID).Scan(&w.Balance, &w.UpdatedAt)
	if err != nil && mapErr(err) == ports.ErrNotFound {
		return w, nil
	}
	return w, mapErr(err)
}

func (db *DB) Transactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, user_id, kind, amount, reference, created_at
		FROM transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()
	out := []domain.Transaction{}
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Reference, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ApplyTransaction inserts the ledger row and moves the balance in one transaction.
// A reference already taken for the user, or a purchase reference taken by anyone,
// yields ErrConflict.
func (db *DB) ApplyTransaction(ctx context.Context, t domain.Transaction) (domain.Wallet, error) {
	w := domain.Wallet{UserID: t.UserID}
	err := db.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO transactions (user_id, kind, amount, reference)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT DO NOTHING`, t.UserID, t.Kind, t.Amount, t.Reference)
		if err != nil {
			return mapErr(err)
		}
		if tag.RowsAffected() == 0 {
			return ports.ErrConflict
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, t.UserID); err != nil {
			return mapErr(err)
		}
		var balance int64
		if err := tx.QueryRow(ctx, `
			SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, t.UserID).Scan(&balance); err != nil {
			return err
		}
		if balance+t.Amount < 0 {
			return ports.ErrInsufficientFunds
		}
		return tx.QueryRow(ctx, `
			UPDATE wallets SET balance = balance + $2, updated_at = now()
			WHERE user_id = $1
			RETURNING balance, updated_at`, t.UserID, t.Amount).Scan(&w.Balance, &w.UpdatedAt)
	})
	return w, err
}
