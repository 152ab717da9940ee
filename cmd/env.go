package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/stormsignal/strike-alert/internal/delivery"
	"github.com/stormsignal/strike-alert/internal/ledger"
	"github.com/stormsignal/strike-alert/internal/match"
	"github.com/stormsignal/strike-alert/internal/store"
	"github.com/stormsignal/strike-alert/pkg/zipcode"
)

// appEnv bundles the wired application components for a command run.
type appEnv struct {
	Store   store.Store
	Matcher *match.Matcher
	Ledger  *ledger.Ledger
	Worker  *delivery.Worker
	Zip     zipcode.Client
}

// initEnv opens the configured store and wires the application
// components on top of it. Callers must Close.
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	l := ledger.New(st)
	w := delivery.NewWorker(st, l, delivery.NewLogMailer(), delivery.WorkerConfig{
		Concurrency:    cfg.Delivery.Concurrency,
		AttemptTimeout: time.Duration(cfg.Delivery.AttemptTimeoutSecs) * time.Second,
		MailerRPS:      cfg.Delivery.MailerRPS,
	})

	zipOpts := []zipcode.Option{zipcode.WithRateLimit(cfg.ZipCode.RPS)}
	if cfg.ZipCode.BaseURL != "" {
		zipOpts = append(zipOpts, zipcode.WithBaseURL(cfg.ZipCode.BaseURL))
	}
	if pg, ok := st.(*store.PostgresStore); ok {
		zipOpts = append(zipOpts, zipcode.WithCache(pg.Pool()))
	}

	return &appEnv{
		Store:   st,
		Matcher: match.New(st),
		Ledger:  l,
		Worker:  w,
		Zip:     zipcode.NewClient(zipOpts...),
	}, nil
}

func (e *appEnv) Close() {
	_ = e.Store.Close()
}

// openStore opens the backend named by store.driver.
func openStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "strike-alert.db"
		}
		st, err := store.NewSQLite(dsn)
		if err != nil {
			return nil, eris.Wrap(err, "init sqlite store")
		}
		return st, nil
	case "postgres", "":
		st, err := store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "init postgres store")
		}
		return st, nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// lookbackDuration converts the configured lookback to a duration.
func lookbackDuration() time.Duration {
	return time.Duration(cfg.Alert.LookbackHours) * time.Hour
}
