// Package worker runs the components that live alongside the HTTP server:
// notification handlers on the domain event dispatcher and, when enabled,
// the cross-process change relay.
package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-tracker/internal/relay"
	"github.com/spec-kit/ticket-tracker/internal/service"
)

// Runner owns background workers for one process.
type Runner struct {
	notifications *service.NotificationService
	relay         *relay.Relay
	logger        *zap.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewRunner builds a runner. Either component may be nil.
func NewRunner(notifications *service.NotificationService, changeRelay *relay.Relay, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{notifications: notifications, relay: changeRelay, logger: logger}
}

// Start registers notification handlers and starts the relay. A runner
// starts at most once.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("workers already started")
	}

	if r.notifications != nil {
		r.notifications.RegisterHandlers()
	}
	if r.relay != nil {
		if err := r.relay.Start(ctx); err != nil {
			return err
		}
	}
	r.started = true
	r.logger.Info("background workers started", zap.Bool("relay", r.relay != nil))
	return nil
}

// Stop halts the relay. Notification handlers stay registered on the
// dispatcher since it has no unsubscribe.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started || r.stopped {
		return
	}
	r.stopped = true
	if r.relay != nil {
		r.relay.Stop()
	}
	r.logger.Info("background workers stopped")
}
