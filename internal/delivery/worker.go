// Package delivery drains the pending notification queue and hands
// alerts to a Mailer. A failed attempt never terminates a
// notification: the row stays pending and the next pass retries it.
package delivery

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/stormsignal/strike-alert/internal/ledger"
	"github.com/stormsignal/strike-alert/internal/model"
	"github.com/stormsignal/strike-alert/internal/store"
)

// PassResult summarizes one delivery pass.
type PassResult struct {
	Attempted int64 `json:"attempted"`
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
}

// WorkerConfig controls the delivery worker.
type WorkerConfig struct {
	// Concurrency bounds in-flight deliveries per pass. Default: 5.
	Concurrency int

	// AttemptTimeout bounds a single delivery attempt. Default: 10s.
	AttemptTimeout time.Duration

	// MailerRPS throttles calls to the mail provider. Zero disables
	// throttling.
	MailerRPS float64
}

// Worker drives pending notifications to the sent state.
type Worker struct {
	store   store.Store
	ledger  *ledger.Ledger
	mailer  Mailer
	cfg     WorkerConfig
	limiter *rate.Limiter
}

// NewWorker creates a delivery worker.
func NewWorker(st store.Store, l *ledger.Ledger, m Mailer, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.MailerRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MailerRPS), 1)
	}

	return &Worker{store: st, ledger: l, mailer: m, cfg: cfg, limiter: limiter}
}

// RunPass attempts every pending notification once and reports the
// tally. Individual failures are logged and counted but never abort
// the pass; only a context-level failure returns an error.
func (w *Worker) RunPass(ctx context.Context) (PassResult, error) {
	pending, err := w.ledger.ListPending(ctx)
	if err != nil {
		return PassResult{}, eris.Wrap(err, "delivery: list pending")
	}
	if len(pending) == 0 {
		return PassResult{}, nil
	}

	var attempted, sent, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	for _, n := range pending {
		n := n
		g.Go(func() error {
			if w.limiter != nil {
				if err := w.limiter.Wait(gctx); err != nil {
					return err
				}
			}

			attempted.Add(1)
			if err := w.deliver(gctx, n); err != nil {
				failed.Add(1)
				zap.L().Warn("delivery attempt failed",
					zap.String("notification_id", n.ID),
					zap.String("user_id", n.UserID),
					zap.Error(err),
				)
				// Leave the row pending for the next pass.
				return nil
			}
			sent.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return PassResult{}, eris.Wrap(err, "delivery: pass aborted")
	}

	res := PassResult{
		Attempted: attempted.Load(),
		Sent:      sent.Load(),
		Failed:    failed.Load(),
	}
	zap.L().Info("delivery pass complete",
		zap.Int64("attempted", res.Attempted),
		zap.Int64("sent", res.Sent),
		zap.Int64("failed", res.Failed),
	)
	return res, nil
}

// deliver sends one alert and marks it sent. Resolution failures
// (missing strike or location) count as failures so the operator sees
// them, and the row stays pending.
func (w *Worker) deliver(ctx context.Context, n model.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
	defer cancel()

	strike, err := w.store.GetStrike(ctx, n.StrikeID)
	if err != nil {
		return eris.Wrap(err, "resolve strike")
	}

	loc, err := w.store.GetLatestLocation(ctx, n.UserID)
	if err != nil {
		return eris.Wrap(err, "resolve location")
	}
	if loc == nil {
		return eris.Errorf("no location on file for user %s", n.UserID)
	}

	body := RenderAlertBody(n, *strike, *loc)
	if err := w.mailer.Send(ctx, n.UserID, AlertSubject, body); err != nil {
		return eris.Wrap(err, "send alert")
	}

	return w.ledger.MarkSent(ctx, n.ID, time.Now().UTC())
}

// RunLoop runs delivery passes on a fixed interval until the context
// is cancelled. The first pass runs immediately.
func (w *Worker) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunPass(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			zap.L().Error("delivery pass failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
