package postgres

import (
	"context"
	"encoding/json"
	"log/slog"

	"modelmarket/internal/domain"
	"modelmarket/internal/ports"
)

// ChangeChannel is the NOTIFY channel written by the row_changes triggers.
const ChangeChannel = "row_changes"

// Listen holds one pooled connection on LISTEN and forwards every row change
// to sink until ctx is done.
func (db *DB) Listen(ctx context.Context, sink ports.ChangeSink, logger *slog.Logger) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ChangeChannel); err != nil {
		return err
	}
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		change, err := DecodeChange(n.Payload)
		if err != nil {
			logger.Warn("dropping malformed change", "error", err)
			continue
		}
		sink.Publish(change)
	}
}

// DecodeChange parses a notification payload built by notify_row_change().
func DecodeChange(payload string) (domain.Change, error) {
	var c domain.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return c, err
	}
	return c, nil
}
