package challenge

import (
	"context"
	"log"
	"time"
)

// DefaultSweepInterval is how often the sweeper scans for stale challenges.
const DefaultSweepInterval = 60 * time.Second

// Sweeper periodically evicts expired challenges so the broker's map stays
// bounded between consumes. It is purely a memory-bounding mechanism: Consume
// enforces expiry itself and never relies on a sweep having run.
type Sweeper struct {
	broker   *Broker
	interval time.Duration
}

// NewSweeper returns a Sweeper over broker with the given interval
// (DefaultSweepInterval if <= 0).
func NewSweeper(broker *Broker, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{broker: broker, interval: interval}
}

// Run sweeps on the configured interval until ctx is cancelled. Blocks; run it
// in its own goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.broker.EvictExpired(); n > 0 {
				log.Printf("challenge: sweeper evicted %d expired challenge(s)", n)
			}
		}
	}
}
