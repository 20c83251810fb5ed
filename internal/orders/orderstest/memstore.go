// Package orderstest provides an in-memory orders.Store for tests.
package orderstest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bizconnect/marketplace/internal/orders"
)

// MemStore keeps everything in maps. Transactions are serialised and roll
// back by restoring a snapshot.
type MemStore struct {
	mu sync.Mutex
	st *state

	// Fail, when set, is consulted before every write; a non-nil error is
	// returned from that write.
	Fail func(op string) error
}

type state struct {
	products map[string]orders.Product
	users    map[string]string
	orders   map[string]orders.Order
	items    map[string]orders.OrderItem
	logs     []orders.StatusLog
	payments map[string]orders.Payment
}

func New() *MemStore {
	return &MemStore{st: &state{
		products: map[string]orders.Product{},
		users:    map[string]string{},
		orders:   map[string]orders.Order{},
		items:    map[string]orders.OrderItem{},
		payments: map[string]orders.Payment{},
	}}
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[string]orders.Product, len(s.products)),
		users:    make(map[string]string, len(s.users)),
		orders:   make(map[string]orders.Order, len(s.orders)),
		items:    make(map[string]orders.OrderItem, len(s.items)),
		logs:     append([]orders.StatusLog(nil), s.logs...),
		payments: make(map[string]orders.Payment, len(s.payments)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

// AddProduct seeds a product.
func (m *MemStore) AddProduct(p orders.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.products[p.ID] = p
}

// AddUser seeds a username used by seller reports.
func (m *MemStore) AddUser(id, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.users[id] = username
}

func (m *MemStore) Product(id string) orders.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.products[id]
}

// OrderCount returns the number of stored orders.
func (m *MemStore) OrderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.orders)
}

// AllLogs returns every log entry in insertion order.
func (m *MemStore) AllLogs() []orders.StatusLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]orders.StatusLog(nil), m.st.logs...)
}

// SetOrderStatus overwrites an order's status without logging.
func (m *MemStore) SetOrderStatus(id string, st orders.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.st.orders[id]
	o.Status = st
	m.st.orders[id] = o
}

// SetItemStatus overwrites an item's status without logging.
func (m *MemStore) SetItemStatus(id string, st orders.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := m.st.items[id]
	it.Status = st
	m.st.items[id] = it
}

func (m *MemStore) InTx(ctx context.Context, fn func(q orders.Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.st.clone()
	if err := fn(view{m: m, st: m.st}); err != nil {
		m.st = snap
		return err
	}
	return nil
}

func (m *MemStore) locked() (view, func()) {
	m.mu.Lock()
	return view{m: m, st: m.st}, m.mu.Unlock
}

func (m *MemStore) ActiveProducts(ctx context.Context, ids []string) (map[string]orders.Product, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.ActiveProducts(ctx, ids)
}

func (m *MemStore) DecrementStock(ctx context.Context, productID string, qty int) error {
	v, unlock := m.locked()
	defer unlock()
	return v.DecrementStock(ctx, productID, qty)
}

func (m *MemStore) InsertOrder(ctx context.Context, o orders.Order) error {
	v, unlock := m.locked()
	defer unlock()
	return v.InsertOrder(ctx, o)
}

func (m *MemStore) InsertItem(ctx context.Context, it orders.OrderItem) error {
	v, unlock := m.locked()
	defer unlock()
	return v.InsertItem(ctx, it)
}

func (m *MemStore) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.GetOrder(ctx, id)
}

func (m *MemStore) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.LockOrder(ctx, id)
}

func (m *MemStore) UpdateOrderStatus(ctx context.Context, o orders.Order) error {
	v, unlock := m.locked()
	defer unlock()
	return v.UpdateOrderStatus(ctx, o)
}

func (m *MemStore) BuyerOrders(ctx context.Context, buyerID string) ([]orders.Order, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.BuyerOrders(ctx, buyerID)
}

func (m *MemStore) GetItem(ctx context.Context, id string) (orders.OrderItem, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.GetItem(ctx, id)
}

func (m *MemStore) CompareAndSetItemStatus(ctx context.Context, it orders.OrderItem, from orders.Status) (bool, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.CompareAndSetItemStatus(ctx, it, from)
}

func (m *MemStore) MarkItemDelivered(ctx context.Context, itemID string, at time.Time) (bool, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.MarkItemDelivered(ctx, itemID, at)
}

func (m *MemStore) SellerLines(ctx context.Context, sellerID string) ([]orders.SellerLine, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.SellerLines(ctx, sellerID)
}

func (m *MemStore) InsertLog(ctx context.Context, l orders.StatusLog) error {
	v, unlock := m.locked()
	defer unlock()
	return v.InsertLog(ctx, l)
}

func (m *MemStore) Logs(ctx context.Context, orderID string) ([]orders.StatusLog, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.Logs(ctx, orderID)
}

func (m *MemStore) GetPayment(ctx context.Context, orderID string) (orders.Payment, error) {
	v, unlock := m.locked()
	defer unlock()
	return v.GetPayment(ctx, orderID)
}

func (m *MemStore) UpsertPayment(ctx context.Context, p orders.Payment) error {
	v, unlock := m.locked()
	defer unlock()
	return v.UpsertPayment(ctx, p)
}

// view implements orders.Queries over state; the caller holds the lock.
type view struct {
	m  *MemStore
	st *state
}

func (v view) fail(op string) error {
	if v.m.Fail != nil {
		return v.m.Fail(op)
	}
	return nil
}

func (v view) ActiveProducts(_ context.Context, ids []string) (map[string]orders.Product, error) {
	out := map[string]orders.Product{}
	for _, id := range ids {
		if p, ok := v.st.products[id]; ok && p.Active {
			out[id] = p
		}
	}
	return out, nil
}

func (v view) DecrementStock(_ context.Context, productID string, qty int) error {
	if err := v.fail("DecrementStock"); err != nil {
		return err
	}
	p, ok := v.st.products[productID]
	if !ok {
		return nil
	}
	p.Stock = max(p.Stock-qty, 0)
	v.st.products[productID] = p
	return nil
}

func (v view) InsertOrder(_ context.Context, o orders.Order) error {
	if err := v.fail("InsertOrder"); err != nil {
		return err
	}
	o.Items = nil
	v.st.orders[o.ID] = o
	return nil
}

func (v view) InsertItem(_ context.Context, it orders.OrderItem) error {
	if err := v.fail("InsertItem"); err != nil {
		return err
	}
	v.st.items[it.ID] = it
	return nil
}

func (v view) itemsOf(orderID string) []orders.OrderItem {
	var out []orders.OrderItem
	for _, it := range v.st.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

func (v view) GetOrder(_ context.Context, id string) (orders.Order, error) {
	o, ok := v.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrNotFound
	}
	o.Items = v.itemsOf(id)
	return o, nil
}

func (v view) LockOrder(ctx context.Context, id string) (orders.Order, error) {
	return v.GetOrder(ctx, id)
}

func (v view) UpdateOrderStatus(_ context.Context, o orders.Order) error {
	if err := v.fail("UpdateOrderStatus"); err != nil {
		return err
	}
	cur, ok := v.st.orders[o.ID]
	if !ok {
		return orders.ErrNotFound
	}
	cur.Status = o.Status
	cur.ShippedAt = o.ShippedAt
	cur.DeliveredAt = o.DeliveredAt
	cur.UpdatedAt = o.UpdatedAt
	v.st.orders[o.ID] = cur
	return nil
}

func (v view) BuyerOrders(_ context.Context, buyerID string) ([]orders.Order, error) {
	var out []orders.Order
	for _, o := range v.st.orders {
		if o.BuyerID == buyerID {
			o.Items = v.itemsOf(o.ID)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (v view) GetItem(_ context.Context, id string) (orders.OrderItem, error) {
	it, ok := v.st.items[id]
	if !ok {
		return orders.OrderItem{}, orders.ErrNotFound
	}
	return it, nil
}

func (v view) CompareAndSetItemStatus(_ context.Context, it orders.OrderItem, from orders.Status) (bool, error) {
	if err := v.fail("CompareAndSetItemStatus"); err != nil {
		return false, err
	}
	cur, ok := v.st.items[it.ID]
	if !ok || cur.Status != from {
		return false, nil
	}
	cur.Status = it.Status
	if cur.ShippedAt == nil {
		cur.ShippedAt = it.ShippedAt
	}
	v.st.items[it.ID] = cur
	return true, nil
}

func (v view) MarkItemDelivered(_ context.Context, itemID string, at time.Time) (bool, error) {
	if err := v.fail("MarkItemDelivered"); err != nil {
		return false, err
	}
	cur, ok := v.st.items[itemID]
	if !ok || cur.DeliveredAt != nil {
		return false, nil
	}
	cur.DeliveredAt = &at
	v.st.items[itemID] = cur
	return true, nil
}

func (v view) SellerLines(_ context.Context, sellerID string) ([]orders.SellerLine, error) {
	var out []orders.SellerLine
	for _, it := range v.st.items {
		if it.SellerID != sellerID {
			continue
		}
		o := v.st.orders[it.OrderID]
		out = append(out, orders.SellerLine{
			Item:        it,
			OrderNumber: o.Number,
			BuyerID:     o.BuyerID,
			BuyerName:   v.st.users[o.BuyerID],
			OrderedAt:   o.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OrderedAt.Equal(out[j].OrderedAt) {
			return out[i].OrderedAt.After(out[j].OrderedAt)
		}
		return out[i].Item.Line < out[j].Item.Line
	})
	return out, nil
}

func (v view) InsertLog(_ context.Context, l orders.StatusLog) error {
	if err := v.fail("InsertLog"); err != nil {
		return err
	}
	v.st.logs = append(v.st.logs, l)
	return nil
}

func (v view) Logs(_ context.Context, orderID string) ([]orders.StatusLog, error) {
	var out []orders.StatusLog
	for _, l := range v.st.logs {
		if l.OrderID == orderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (v view) GetPayment(_ context.Context, orderID string) (orders.Payment, error) {
	p, ok := v.st.payments[orderID]
	if !ok {
		return orders.Payment{}, orders.ErrNotFound
	}
	return p, nil
}

func (v view) UpsertPayment(_ context.Context, p orders.Payment) error {
	if err := v.fail("UpsertPayment"); err != nil {
		return err
	}
	if cur, ok := v.st.payments[p.OrderID]; ok {
		p.CreatedAt = cur.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	v.st.payments[p.OrderID] = p
	return nil
}
