package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSyncer struct {
	flushes  atomic.Int32
	reloads  atomic.Int32
	flushErr atomic.Bool
}

func (f *fakeSyncer) Flush(context.Context) error {
	f.flushes.Add(1)
	if f.flushErr.Load() {
		return errors.New("store down")
	}
	return nil
}

func (f *fakeSyncer) Reload(context.Context) error {
	f.reloads.Add(1)
	return nil
}

func TestDefaultResyncerConfig(t *testing.T) {
	if got := DefaultResyncerConfig().Interval; got != 30*time.Second {
		t.Errorf("expected Interval 30s, got %v", got)
	}
	if got := NewResyncer(&fakeSyncer{}, ResyncerConfig{}).config.Interval; got != 30*time.Second {
		t.Errorf("zero interval should fall back to the default, got %v", got)
	}
}

func TestResyncer_Lifecycle(t *testing.T) {
	r := NewResyncer(&fakeSyncer{}, ResyncerConfig{Interval: time.Hour})
	ctx := context.Background()

	if r.IsRunning() {
		t.Fatal("resyncer should not be running initially")
	}
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Error("expected error when starting a running resyncer")
	}
	if !r.IsRunning() {
		t.Error("resyncer should be running")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.IsRunning() {
		t.Error("resyncer should be stopped")
	}
	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("stopping twice should be a no-op: %v", err)
	}
}

func TestResyncer_TickFlushesThenReloads(t *testing.T) {
	target := &fakeSyncer{}
	r := NewResyncer(target, ResyncerConfig{Interval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for target.reloads.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := r.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if target.reloads.Load() < 2 {
		t.Fatalf("expected repeated reloads, got %d", target.reloads.Load())
	}
}

func TestResyncer_SkipsReloadWhileFlushFails(t *testing.T) {
	target := &fakeSyncer{}
	target.flushErr.Store(true)
	r := NewResyncer(target, ResyncerConfig{Interval: time.Hour})

	r.tick(context.Background())
	r.tick(context.Background())

	if target.flushes.Load() != 2 || target.reloads.Load() != 0 {
		t.Fatalf("flushes=%d reloads=%d", target.flushes.Load(), target.reloads.Load())
	}

	target.flushErr.Store(false)
	r.tick(context.Background())
	if target.reloads.Load() != 1 {
		t.Fatalf("expected a reload once flushing succeeds, got %d", target.reloads.Load())
	}
}

func TestResyncer_StopsWithContext(t *testing.T) {
	r := NewResyncer(&fakeSyncer{}, ResyncerConfig{Interval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	if err := r.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("stop after cancel: %v", err)
	}
}
