// Package notifier delivers critical-transition events to downstream channels.
package notifier

import (
	"context"
	"errors"
	"time"

	"wisefido-survival/internal/models"
)

// Notifier receives one call per transition into critical
type Notifier interface {
	NotifyCritical(ctx context.Context, event models.CriticalTransition) error
}

// Func adapts a function to Notifier
type Func func(ctx context.Context, event models.CriticalTransition) error

func (f Func) NotifyCritical(ctx context.Context, event models.CriticalTransition) error {
	return f(ctx, event)
}

// Multi calls every notifier in order and joins their errors.
// Wrap members with WithTimeout so a slow one cannot starve those after it.
type Multi []Notifier

func (m Multi) NotifyCritical(ctx context.Context, event models.CriticalTransition) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.NotifyCritical(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type timeoutNotifier struct {
	next    Notifier
	timeout time.Duration
}

// WithTimeout bounds each call of n by its own deadline derived from the caller's context
func WithTimeout(n Notifier, timeout time.Duration) Notifier {
	if n == nil || timeout <= 0 {
		return n
	}
	return &timeoutNotifier{next: n, timeout: timeout}
}

func (t *timeoutNotifier) NotifyCritical(ctx context.Context, event models.CriticalTransition) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.NotifyCritical(ctx, event)
}
