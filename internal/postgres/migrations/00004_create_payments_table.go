package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpPaymentsTable, DownPaymentsTable)
}

func UpPaymentsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE payments
(
    order_id            TEXT PRIMARY KEY REFERENCES orders (id) ON DELETE CASCADE,
    method              VARCHAR(20)    NOT NULL DEFAULT 'cod',
    status              VARCHAR(20)    NOT NULL DEFAULT 'pending',
    amount              NUMERIC(10, 2) NOT NULL,
    proof_image         VARCHAR(300)   NOT NULL DEFAULT '',
    reference_number    VARCHAR(100)   NOT NULL DEFAULT '',
    sender_name         VARCHAR(100)   NOT NULL DEFAULT '',
    checkout_session_id VARCHAR(200)   NOT NULL DEFAULT '',
    paid_at             TIMESTAMPTZ,
    created_at          TIMESTAMPTZ    NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ    NOT NULL DEFAULT now()
);`)
	return err
}

func DownPaymentsTable(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE payments;`)
	return err
}
