package connectivity

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Checker probes reachability. A nil error means reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// Prober feeds periodic reachability checks into a Monitor.
type Prober struct {
	checker  Checker
	monitor  *Monitor
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewProber creates a prober. Each check is bounded by the smaller of
// interval and 5s.
func NewProber(checker Checker, monitor *Monitor, interval time.Duration, logger zerolog.Logger) *Prober {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	timeout := 5 * time.Second
	if interval < timeout {
		timeout = interval
	}
	return &Prober{
		checker:  checker,
		monitor:  monitor,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With().Str("component", "prober").Logger(),
	}
}

// Probe runs one check and applies the result.
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.Check(ctx)
	online := err == nil
	if p.monitor.Set(online) {
		ev := p.logger.Info().Bool("online", online)
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Msg("connectivity changed")
	}
	return online
}

// Run probes immediately and then on every tick until ctx is done.
func (p *Prober) Run(ctx context.Context) {
	p.Probe(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
