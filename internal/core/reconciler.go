package core

import (
	"context"
	"time"
)

type ReconcilerConfig struct {
	Interval       time.Duration `envconfig:"RECONCILE_INTERVAL" default:"5m"`
	ToleranceCents int64         `envconfig:"RECONCILE_TOLERANCE_CENTS" default:"0"`
}

// Reconciler periodically compares the sum of virtual balances per
// currency against the pooled account's external balance. It is strictly
// read-only with respect to customer balances: drift is surfaced to an
// operator, never corrected by adjusting the ledger.
type Reconciler struct {
	ledger     *Ledger
	registry   *MasterAccountRegistry
	logger     Logger
	cfg        ReconcilerConfig
	currencies []string
}

func NewReconciler(ledger *Ledger, registry *MasterAccountRegistry, logger Logger, cfg ReconcilerConfig, currencies []string) *Reconciler {
	return &Reconciler{
		ledger:     ledger,
		registry:   registry,
		logger:     logger,
		cfg:        cfg,
		currencies: currencies,
	}
}

func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes each pool's cached balance and reports drift beyond
// tolerance. Refresh failures degrade to comparing against the stale
// cached balance rather than skipping the check.
func (r *Reconciler) RunOnce(ctx context.Context) {
	for _, currency := range r.currencies {
		if _, err := r.registry.RefreshExternalBalance(ctx, currency); err != nil {
			r.logger.WarnContext(ctx, "could not refresh pool balance, comparing against cached value",
				"currency", currency,
				"error", err,
			)
		}

		drift, err := r.ledger.Reconcile(ctx, currency)
		if err != nil {
			r.logger.ErrorContext(ctx, "reconciliation failed",
				"currency", currency,
				"error", err,
			)
			continue
		}

		if drift > r.cfg.ToleranceCents || drift < -r.cfg.ToleranceCents {
			r.logger.ErrorContext(ctx, "reconciliation drift detected, operator investigation required",
				"currency", currency,
				"drift_cents", drift,
			)
			continue
		}

		r.logger.InfoContext(ctx, "reconciliation clean",
			"currency", currency,
			"drift_cents", drift,
		)
	}
}
