// Package worker runs the background payment-confirmation poller.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/oniongate/satstore/internal/core/order"
	"github.com/oniongate/satstore/internal/core/ports"
)

const pendingBatchSize = 50

// ConfirmationWorker periodically runs the order status check over pending
// orders so payments settle without a client polling. It relies entirely
// on the idempotence of CheckStatus; a client hitting the status endpoint
// concurrently is harmless, and any confirmation side effects (webhooks)
// fire from the transition inside the manager, not from this sweep.
type ConfirmationWorker struct {
	orders   *order.Manager
	repo     ports.OrderRepository
	interval time.Duration
	log      *slog.Logger
}

func NewConfirmationWorker(orders *order.Manager, repo ports.OrderRepository, interval time.Duration, log *slog.Logger) *ConfirmationWorker {
	return &ConfirmationWorker{
		orders:   orders,
		repo:     repo,
		interval: interval,
		log:      log,
	}
}

// Start launches the poll loop; it returns immediately and the loop stops
// with the context.
func (w *ConfirmationWorker) Start(ctx context.Context) {
	go func() {
		w.log.Info("confirmation worker started", "interval", w.interval)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.log.Info("confirmation worker stopped")
				return
			case <-ticker.C:
				w.sweep(ctx)
			}
		}
	}()
}

func (w *ConfirmationWorker) sweep(ctx context.Context) {
	pending, err := w.repo.ListPending(ctx, pendingBatchSize)
	if err != nil {
		w.log.Error("failed to list pending orders", "error", err)
		return
	}

	for _, ord := range pending {
		if _, err := w.orders.CheckStatus(ctx, ord.Number); err != nil {
			w.log.Error("status check failed", "error", err, "order_number", ord.Number)
		}
	}
}
