package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpNotificationsTable, DownNotificationsTable)
}

func UpNotificationsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE notifications
(
    id           TEXT PRIMARY KEY,
    recipient_id TEXT         NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    actor_id     TEXT         REFERENCES users (id) ON DELETE SET NULL,
    notif_type   VARCHAR(20)  NOT NULL DEFAULT 'system',
    message      VARCHAR(400) NOT NULL,
    link         VARCHAR(300) NOT NULL DEFAULT '',
    is_read      BOOLEAN      NOT NULL DEFAULT FALSE,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);
CREATE INDEX notifications_recipient_idx ON notifications (recipient_id, created_at DESC);`)
	return err
}

func DownNotificationsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE notifications;`)
	return err
}
