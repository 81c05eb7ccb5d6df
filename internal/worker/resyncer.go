// Package worker runs the background loop that keeps a tracker instance
// consistent with its store when bus events are missed or writes fail.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"expensetracker/internal/log"
)

// Syncer is the part of tracker.Controller the resyncer drives.
type Syncer interface {
	Flush(ctx context.Context) error
	Reload(ctx context.Context) error
}

// ResyncerConfig holds configuration for the resyncer
type ResyncerConfig struct {
	// Interval is how often pending writes are retried and the store re-read (default: 30s)
	Interval time.Duration
}

// DefaultResyncerConfig returns sensible defaults
func DefaultResyncerConfig() ResyncerConfig {
	return ResyncerConfig{Interval: 30 * time.Second}
}

// Resyncer periodically flushes failed writes, then reloads from the store.
type Resyncer struct {
	target Syncer
	config ResyncerConfig
	logger *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewResyncer(target Syncer, config ResyncerConfig) *Resyncer {
	if config.Interval <= 0 {
		config.Interval = DefaultResyncerConfig().Interval
	}
	return &Resyncer{
		target: target,
		config: config,
		logger: log.Default().WithComponent(log.ComponentWorker),
	}
}

// Start begins the loop. Returns an error if already running.
func (r *Resyncer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("resyncer is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	r.logger.InfoContext(ctx, "Resyncer started", "interval", r.config.Interval)
	return nil
}

// Stop signals the loop and waits for the current tick to finish.
func (r *Resyncer) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	stopCh, doneCh := r.stopCh, r.doneCh
	r.running = false
	r.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		r.logger.InfoContext(ctx, "Resyncer stopped gracefully")
		return nil
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Resyncer stop timed out")
		return ctx.Err()
	}
}

func (r *Resyncer) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Resyncer) runLoop(ctx context.Context) {
	r.mu.Lock()
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()
	defer close(doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Resyncer) tick(ctx context.Context) {
	if err := r.target.Flush(ctx); err != nil {
		r.logger.WarnContext(ctx, "Pending changes still not saved",
			log.FieldOperation, log.OpSync,
			log.FieldError, err)
		return
	}
	if err := r.target.Reload(ctx); err != nil {
		r.logger.WarnContext(ctx, "Failed to reload from store",
			log.FieldOperation, log.OpSync,
			log.FieldError, err)
	}
}
