package dbx

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingConfig controls the retry schedule of PingWithBackoff.
type PingConfig struct {
	InitialInterval   time.Duration
	MaxInterval       time.Duration
	MaxElapsedTime    time.Duration
	PerAttemptTimeout time.Duration
}

// DefaultPingConfig fits a database that may still be starting next to the
// service.
var DefaultPingConfig = PingConfig{
	InitialInterval:   500 * time.Millisecond,
	MaxInterval:       5 * time.Second,
	MaxElapsedTime:    30 * time.Second,
	PerAttemptTimeout: 3 * time.Second,
}

// PingWithBackoff pings db with exponential backoff until it answers, ctx is
// done or cfg.MaxElapsedTime passes. notify, if set, is called before every
// retry.
func PingWithBackoff(ctx context.Context, db Pinger, cfg PingConfig, notify func(err error, next time.Duration)) error {
	bo := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		bo.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		bo.MaxInterval = cfg.MaxInterval
	}
	bo.MaxElapsedTime = cfg.MaxElapsedTime

	op := func() error {
		if cfg.PerAttemptTimeout > 0 {
			attemptCtx, cancel := context.WithTimeout(ctx, cfg.PerAttemptTimeout)
			defer cancel()
			return db.PingContext(attemptCtx)
		}
		return db.PingContext(ctx)
	}

	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}
