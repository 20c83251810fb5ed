package orderstest

import (
	"context"
	"io"
	"sync"

	"github.com/bizconnect/marketplace/internal/orders"
)

// Checkout is a scripted hosted-checkout processor.
type Checkout struct {
	mu sync.Mutex

	CreateErr error
	// Statuses maps session id to the verification result; unknown ids
	// verify as unpaid.
	Statuses map[string]orders.CheckoutStatus

	Created []string
	Success string
	Cancel  string
	// Opened maps session id to the order it was created for.
	Opened map[string]string
}

func (c *Checkout) CreateSession(_ context.Context, o orders.Order, successURL, cancelURL string) (orders.CheckoutSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CreateErr != nil {
		return orders.CheckoutSession{}, c.CreateErr
	}
	id := "cs_test_" + o.Number
	c.Created = append(c.Created, id)
	if c.Opened == nil {
		c.Opened = map[string]string{}
	}
	c.Opened[id] = o.ID
	c.Success, c.Cancel = successURL, cancelURL
	return orders.CheckoutSession{ID: id, URL: "https://checkout.test/" + id}, nil
}

func (c *Checkout) VerifySession(_ context.Context, sessionID string) orders.SessionCheck {
	c.mu.Lock()
	defer c.mu.Unlock()
	check := orders.SessionCheck{Status: orders.CheckoutUnpaid, OrderID: c.Opened[sessionID]}
	if st, ok := c.Statuses[sessionID]; ok {
		check.Status = st
	}
	return check
}

// Proofs keeps uploaded proofs in memory.
type Proofs struct {
	mu      sync.Mutex
	Err     error
	Saved   map[string][]byte
	Removed []string
}

func (p *Proofs) SaveProof(_ context.Context, orderID, filename string, r io.Reader) (string, error) {
	if p.Err != nil {
		return "", p.Err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Saved == nil {
		p.Saved = map[string][]byte{}
	}
	path := "payment_proofs/" + orderID + "_" + filename
	p.Saved[path] = b
	return path, nil
}

func (p *Proofs) RemoveProof(_ context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.Saved, path)
	p.Removed = append(p.Removed, path)
	return nil
}

// Recorder is a hook that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []orders.Event
}

func (r *Recorder) AfterCommit(_ context.Context, ev orders.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []orders.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]orders.Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []orders.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]orders.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
