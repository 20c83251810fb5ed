package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Repo struct {
	DB dbtx
}

const productCols = `id, seller_id, name, description, price, stock, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r Repo) Create(ctx context.Context, p Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(`+productCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.SellerID, p.Name, p.Description, p.Price, p.Stock, p.Active, p.CreatedAt, p.UpdatedAt)
	return err
}

func (r Repo) Get(ctx context.Context, id string) (Product, error) {
	p, err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r Repo) Update(ctx context.Context, p Product) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name = $2, description = $3, price = $4, stock = $5, is_active = $6, updated_at = $7
		WHERE id = $1`, p.ID, p.Name, p.Description, p.Price, p.Stock, p.Active, p.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) list(ctx context.Context, sql string, args ...any) ([]Product, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r Repo) ListActive(ctx context.Context, query string, limit int) ([]Product, error) {
	return r.list(ctx, `SELECT `+productCols+` FROM products
		WHERE is_active AND ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC LIMIT $2`, query, limit)
}

func (r Repo) BySeller(ctx context.Context, sellerID string) ([]Product, error) {
	return r.list(ctx, `SELECT `+productCols+` FROM products
		WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
}
