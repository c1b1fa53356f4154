// Package health runs the background database liveness probe.
//
// The probe pings the store on a fixed interval. A transient failure is
// logged and tolerated; once failures are consecutive past the threshold
// the process exits so the orchestrator can restart it against a healthy
// database.
package health

import (
	"context"
	"os"
	"time"

	"github.com/equicloud/equicloud/internal/logger"
	"github.com/equicloud/equicloud/pkg/cloudsync/store"
)

const (
	defaultInterval    = 30 * time.Second
	defaultPingTimeout = 5 * time.Second
	maxConsecutive     = 3
)

// Probe periodically checks database connectivity.
type Probe struct {
	store    store.Store
	interval time.Duration
	timeout  time.Duration

	failures int

	// exit terminates the process after too many consecutive failures.
	// Overridable in tests.
	exit func(code int)
}

// NewProbe creates a probe with production defaults. Call Run to start it.
func NewProbe(st store.Store) *Probe {
	return &Probe{
		store:    st,
		interval: defaultInterval,
		timeout:  defaultPingTimeout,
		exit:     os.Exit,
	}
}

// Run blocks, pinging the store every interval until ctx is cancelled.
func (p *Probe) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.check(ctx)
		}
	}
}

// check runs a single ping and updates the consecutive failure count.
func (p *Probe) check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.store.Ping(pingCtx); err != nil {
		p.failures++
		logger.Warn("Database ping failed",
			"error", err,
			"consecutive_failures", p.failures,
		)
		if p.failures >= maxConsecutive {
			logger.Error("Database unreachable, exiting",
				"consecutive_failures", p.failures,
			)
			p.exit(1)
		}
		return
	}

	if p.failures > 0 {
		logger.Info("Database connection recovered",
			"after_failures", p.failures,
		)
	}
	p.failures = 0
}
