package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Hook runs after a state change has committed. Its error is logged by the
// service and never reaches the caller.
type Hook interface {
	AfterCommit(ctx context.Context, ev Event) error
}

type HookFunc func(ctx context.Context, ev Event) error

func (f HookFunc) AfterCommit(ctx context.Context, ev Event) error { return f(ctx, ev) }

type namedHook struct {
	name string
	hook Hook
}

// AddHook appends a post-commit hook. Hooks run in registration order.
func (s *Service) AddHook(name string, h Hook) {
	s.hooks = append(s.hooks, namedHook{name: name, hook: h})
}

func (s *Service) dispatch(ctx context.Context, events ...Event) {
	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if ev.OccurredAt.IsZero() {
			ev.OccurredAt = s.now()
		}
		for _, h := range s.hooks {
			s.runHook(ctx, h, ev)
		}
	}
}

func (s *Service) runHook(ctx context.Context, h namedHook, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger().Errorw("post-commit hook panicked", "hook", h.name, "event", ev.Type, "order_id", ev.Order.ID, "panic", r)
		}
	}()
	// hooks outlive a cancelled request
	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := h.hook.AfterCommit(hctx, ev); err != nil {
		s.logger().Warnw("post-commit hook failed", "hook", h.name, "event", ev.Type, "order_id", ev.Order.ID, "error", err)
	}
}
