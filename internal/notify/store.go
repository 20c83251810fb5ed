package notify

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists notices in Postgres.
type Store struct {
	DB dbtx
}

func (s Store) Create(ctx context.Context, n Notice) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO notifications(id, recipient_id, actor_id, notif_type, message, link, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)`,
		n.ID, n.RecipientID, n.ActorID, string(n.Type), n.Message, n.Link, n.CreatedAt)
	return err
}

func (s Store) List(ctx context.Context, recipientID string, limit int) ([]Notice, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, recipient_id, actor_id, notif_type, message, link, is_read, created_at
		FROM notifications WHERE recipient_id = $1
		ORDER BY created_at DESC LIMIT $2`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notice
	for rows.Next() {
		var (
			n   Notice
			typ string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.ActorID, &typ, &n.Message, &n.Link, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = Type(typ)
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead flags one notice; false when it was already read.
func (s Store) MarkRead(ctx context.Context, recipientID, id string) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND recipient_id = $2 AND NOT is_read`, id, recipientID)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}
	var exists bool
	if err := s.DB.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM notifications WHERE id = $1 AND recipient_id = $2)`, id, recipientID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

func (s Store) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`, recipientID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (s Store) CountUnread(ctx context.Context, recipientID string) (int64, error) {
	var n int64
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT is_read`, recipientID).Scan(&n)
	return n, err
}
