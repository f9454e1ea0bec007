package util

import (
	"context"
	"sync"
	"time"
)

// Pacer spaces calls to at most perSecond per second across goroutines.
type Pacer struct {
	mu            sync.Mutex
	nextAllowedAt time.Time
	interval      time.Duration
}

func NewPacer(perSecond int) *Pacer {
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Pacer{interval: time.Second / time.Duration(perSecond)}
}

// Wait blocks until the caller's turn or until ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	now := time.Now()
	scheduled := now
	if p.nextAllowedAt.After(now) {
		scheduled = p.nextAllowedAt
	}
	p.nextAllowedAt = scheduled.Add(p.interval)
	p.mu.Unlock()

	sleep := time.Until(scheduled)
	if sleep <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
