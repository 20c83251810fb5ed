package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	dbtx
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repo is the Postgres Store.
type Repo struct {
	queries
	pool Pool
}

func NewRepo(pool Pool) *Repo {
	return &Repo{queries: queries{db: pool}, pool: pool}
}

func (r *Repo) InTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx err: %w; rollback err: %v", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

type queries struct{ db dbtx }

const (
	orderCols = `id, order_number, buyer_id, status, total_amount, shipping_address, notes,
		shipped_at, delivered_at, created_at, updated_at`
	itemCols = `id, order_id, line_no, product_id, COALESCE(seller_id, ''), product_name, unit_price,
		quantity, status, shipped_at, delivered_at`
	itemColsI = `i.id, i.order_id, i.line_no, i.product_id, COALESCE(i.seller_id, ''), i.product_name, i.unit_price,
		i.quantity, i.status, i.shipped_at, i.delivered_at`
	paymentCols = `order_id, method, status, amount, proof_image, reference_number, sender_name,
		checkout_session_id, paid_at, created_at, updated_at`
)

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (q queries) ActiveProducts(ctx context.Context, ids []string) (map[string]Product, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, seller_id, name, description, price, stock, is_active
		FROM products WHERE id = ANY($1) AND is_active`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Active); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (q queries) DecrementStock(ctx context.Context, productID string, qty int) error {
	_, err := q.db.Exec(ctx, `
		UPDATE products SET stock = GREATEST(stock - $2, 0), updated_at = now()
		WHERE id = $1`, productID, qty)
	return err
}

func (q queries) InsertOrder(ctx context.Context, o Order) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO orders(id, order_number, buyer_id, status, total_amount, shipping_address, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.Number, o.BuyerID, string(o.Status), o.Total, o.ShippingAddress, o.Notes, o.CreatedAt, o.UpdatedAt)
	return err
}

func (q queries) InsertItem(ctx context.Context, it OrderItem) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO order_items(id, order_id, line_no, product_id, seller_id, product_name, unit_price, quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		it.ID, it.OrderID, it.Line, it.ProductID, it.SellerID, it.ProductName, it.UnitPrice, it.Quantity, string(it.Status))
	return err
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.Number, &o.BuyerID, &status, &o.Total, &o.ShippingAddress, &o.Notes,
		&o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	return o, err
}

func scanItem(row pgx.Row, extra ...any) (OrderItem, error) {
	var (
		it     OrderItem
		status string
	)
	dest := []any{&it.ID, &it.OrderID, &it.Line, &it.ProductID, &it.SellerID, &it.ProductName, &it.UnitPrice,
		&it.Quantity, &status, &it.ShippedAt, &it.DeliveredAt}
	err := row.Scan(append(dest, extra...)...)
	it.Status = Status(status)
	return it, err
}

func (q queries) items(ctx context.Context, orderIDs ...string) (map[string][]OrderItem, error) {
	rows, err := q.db.Query(ctx, `SELECT `+itemCols+` FROM order_items
		WHERE order_id = ANY($1) ORDER BY order_id, line_no`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]OrderItem, len(orderIDs))
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

func (q queries) getOrder(ctx context.Context, id string, lock bool) (Order, error) {
	sql := `SELECT ` + orderCols + ` FROM orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.db.QueryRow(ctx, sql, id))
	if err != nil {
		return Order{}, notFound(err)
	}
	items, err := q.items(ctx, o.ID)
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (q queries) GetOrder(ctx context.Context, id string) (Order, error) {
	return q.getOrder(ctx, id, false)
}

func (q queries) LockOrder(ctx context.Context, id string) (Order, error) {
	return q.getOrder(ctx, id, true)
}

func (q queries) UpdateOrderStatus(ctx context.Context, o Order) error {
	ct, err := q.db.Exec(ctx, `
		UPDATE orders SET status = $2, shipped_at = $3, delivered_at = $4, updated_at = $5
		WHERE id = $1`, o.ID, string(o.Status), o.ShippedAt, o.DeliveredAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (q queries) BuyerOrders(ctx context.Context, buyerID string) ([]Order, error) {
	rows, err := q.db.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	var (
		out []Order
		ids []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	items, err := q.items(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (q queries) GetItem(ctx context.Context, id string) (OrderItem, error) {
	it, err := scanItem(q.db.QueryRow(ctx, `SELECT `+itemCols+` FROM order_items WHERE id = $1`, id))
	if err != nil {
		return OrderItem{}, notFound(err)
	}
	return it, nil
}

func (q queries) CompareAndSetItemStatus(ctx context.Context, it OrderItem, from Status) (bool, error) {
	ct, err := q.db.Exec(ctx, `
		UPDATE order_items SET status = $3, shipped_at = COALESCE(shipped_at, $4)
		WHERE id = $1 AND status = $2`, it.ID, string(from), string(it.Status), it.ShippedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (q queries) MarkItemDelivered(ctx context.Context, itemID string, at time.Time) (bool, error) {
	ct, err := q.db.Exec(ctx, `
		UPDATE order_items SET delivered_at = $2
		WHERE id = $1 AND delivered_at IS NULL`, itemID, at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (q queries) SellerLines(ctx context.Context, sellerID string) ([]SellerLine, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+itemColsI+`, o.order_number, o.buyer_id, COALESCE(u.username, ''), o.created_at
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		LEFT JOIN users u ON u.id = o.buyer_id
		WHERE i.seller_id = $1
		ORDER BY o.created_at DESC, i.line_no`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SellerLine
	for rows.Next() {
		var l SellerLine
		it, err := scanItem(rows, &l.OrderNumber, &l.BuyerID, &l.BuyerName, &l.OrderedAt)
		if err != nil {
			return nil, err
		}
		l.Item = it
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q queries) InsertLog(ctx context.Context, l StatusLog) error {
	var old *string
	if l.OldStatus != nil {
		s := string(*l.OldStatus)
		old = &s
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO order_status_logs(id, order_id, changed_by, old_status, new_status, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.OrderID, l.Actor.nullable(), old, string(l.NewStatus), l.Note, l.CreatedAt)
	return err
}

func (q queries) Logs(ctx context.Context, orderID string) ([]StatusLog, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, changed_by, old_status, new_status, note, created_at
		FROM order_status_logs WHERE order_id = $1 ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusLog
	for rows.Next() {
		var (
			l         StatusLog
			changedBy *string
			old       *string
			nw        string
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &changedBy, &old, &nw, &l.Note, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Actor = actorFromColumn(changedBy)
		if old != nil {
			st := Status(*old)
			l.OldStatus = &st
		}
		l.NewStatus = Status(nw)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (q queries) GetPayment(ctx context.Context, orderID string) (Payment, error) {
	var (
		p              Payment
		method, status string
	)
	err := q.db.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE order_id = $1`, orderID).
		Scan(&p.OrderID, &method, &status, &p.Amount, &p.ProofPath, &p.ReferenceNumber, &p.SenderName,
			&p.CheckoutSessionID, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Payment{}, notFound(err)
	}
	p.Method = PaymentMethod(method)
	p.Status = PaymentStatus(status)
	return p, nil
}

// UpsertPayment writes the order's single payment row; created_at is kept on
// update.
func (q queries) UpsertPayment(ctx context.Context, p Payment) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO payments(order_id, method, status, amount, proof_image, reference_number, sender_name,
		                     checkout_session_id, paid_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (order_id) DO UPDATE SET
			method = EXCLUDED.method,
			status = EXCLUDED.status,
			amount = EXCLUDED.amount,
			proof_image = EXCLUDED.proof_image,
			reference_number = EXCLUDED.reference_number,
			sender_name = EXCLUDED.sender_name,
			checkout_session_id = EXCLUDED.checkout_session_id,
			paid_at = EXCLUDED.paid_at,
			updated_at = EXCLUDED.updated_at`,
		p.OrderID, string(p.Method), string(p.Status), p.Amount, p.ProofPath, p.ReferenceNumber, p.SenderName,
		p.CheckoutSessionID, p.PaidAt, p.UpdatedAt)
	return err
}
