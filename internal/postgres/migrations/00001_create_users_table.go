package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpUsersTable, DownUsersTable)
}

func UpUsersTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE users
(
    id         TEXT PRIMARY KEY,
    username   VARCHAR(150) NOT NULL UNIQUE,
    full_name  VARCHAR(300) NOT NULL DEFAULT '',
    email      VARCHAR(254) NOT NULL DEFAULT '',
    role       VARCHAR(16)  NOT NULL DEFAULT 'buyer',
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now()
);`)
	return err
}

func DownUsersTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE users;`)
	return err
}
