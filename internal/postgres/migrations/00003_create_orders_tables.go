package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(UpOrdersTables, DownOrdersTables)
}

func UpOrdersTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `CREATE TABLE orders
(
    id               TEXT PRIMARY KEY,
    order_number     VARCHAR(20)    NOT NULL UNIQUE,
    buyer_id         TEXT           NOT NULL REFERENCES users (id) ON DELETE CASCADE,
    status           VARCHAR(20)    NOT NULL DEFAULT 'pending',
    total_amount     NUMERIC(10, 2) NOT NULL DEFAULT 0,
    shipping_address TEXT           NOT NULL DEFAULT '',
    notes            TEXT           NOT NULL DEFAULT '',
    shipped_at       TIMESTAMPTZ,
    delivered_at     TIMESTAMPTZ,
    created_at       TIMESTAMPTZ    NOT NULL DEFAULT now(),
    updated_at       TIMESTAMPTZ    NOT NULL DEFAULT now()
);
CREATE INDEX orders_buyer_idx ON orders (buyer_id);

CREATE TABLE order_items
(
    id           TEXT PRIMARY KEY,
    order_id     TEXT           NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
    line_no      INT            NOT NULL DEFAULT 0,
    product_id   TEXT           REFERENCES products (id) ON DELETE SET NULL,
    seller_id    TEXT           REFERENCES users (id) ON DELETE SET NULL,
    quantity     INT            NOT NULL DEFAULT 1 CHECK (quantity > 0),
    unit_price   NUMERIC(10, 2) NOT NULL,
    product_name VARCHAR(200)   NOT NULL DEFAULT '',
    status       VARCHAR(20)    NOT NULL DEFAULT 'pending',
    shipped_at   TIMESTAMPTZ,
    delivered_at TIMESTAMPTZ
);
CREATE INDEX order_items_order_idx ON order_items (order_id);
CREATE INDEX order_items_seller_idx ON order_items (seller_id);

CREATE TABLE order_status_logs
(
    id         TEXT PRIMARY KEY,
    order_id   TEXT        NOT NULL REFERENCES orders (id) ON DELETE CASCADE,
    changed_by TEXT        REFERENCES users (id) ON DELETE SET NULL,
    old_status VARCHAR(32),
    new_status VARCHAR(32) NOT NULL,
    note       TEXT        NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX order_status_logs_order_idx ON order_status_logs (order_id, created_at);`)
	return err
}

func DownOrdersTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE order_status_logs;
DROP TABLE order_items;
DROP TABLE orders;`)
	return err
}
