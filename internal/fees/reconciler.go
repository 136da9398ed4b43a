package fees

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betdesk/gotrader/clob/types"
	"github.com/betdesk/gotrader/pkg/logger"
)

// OrderSource answers whether a resting order is still on the book.
// *clob/client.Client satisfies it.
type OrderSource interface {
	GetOrder(ctx context.Context, orderID string) (*types.OpenOrder, error)
}

// Reconciler collects pending_fill fees once their resting orders leave
// the book. Fill-time collection has no in-band trigger, so this runs as
// an explicit periodic job.
type Reconciler struct {
	ledger *Ledger
	orders OrderSource
	sender Sender
	cfg    func() Config
}

// NewReconciler builds a reconciler. cfg is read per cycle so fee-config
// refreshes apply without a restart.
func NewReconciler(ledger *Ledger, orders OrderSource, sender Sender, cfg func() Config) *Reconciler {
	return &Reconciler{ledger: ledger, orders: orders, sender: sender, cfg: cfg}
}

// Run reconciles on the given interval until the context ends.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.ReconcileOnce(ctx); err != nil {
				logger.Warnf("fees: reconcile cycle: %v", err)
			}
		}
	}
}

// ReconcileOnce runs one collection pass over pending_fill records. An
// order still resting is left alone; an order gone from the book is
// treated as settled and its fee collected.
func (r *Reconciler) ReconcileOnce(ctx context.Context) error {
	records, err := r.ledger.ListByStatus(ctx, StatusPendingFill)
	if err != nil {
		return err
	}

	treasury := common.HexToAddress(r.cfg().Treasury)
	for _, rec := range records {
		order, err := r.orders.GetOrder(ctx, rec.OrderID)
		if err != nil {
			logger.Warnf("fees: look up order %s: %v", rec.OrderID, err)
			continue
		}
		if order != nil {
			continue
		}

		txHash, err := r.sender.SendFee(ctx, treasury, rec.Amount)
		if err != nil {
			logger.Warnf("fees: collect %s for order %s: %v", rec.ID, rec.OrderID, err)
			if uerr := r.ledger.UpdateStatus(ctx, rec.ID, StatusFailed, ""); uerr != nil {
				logger.Errorf("fees: mark record %s failed: %v", rec.ID, uerr)
			}
			continue
		}
		if err := r.ledger.UpdateStatus(ctx, rec.ID, StatusConfirmed, txHash); err != nil {
			logger.Errorf("fees: mark record %s confirmed: %v", rec.ID, err)
		}
		logger.Infof("fees: collected deferred fee %s for order %s, tx=%s", rec.ID, rec.OrderID, txHash)
	}
	return nil
}
