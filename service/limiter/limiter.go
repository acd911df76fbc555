// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package limiter

import (
	"fmt"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// entry tracks the recent request timestamps for a single identifier.
// Denied attempts are recorded as well so that retry storms keep counting
// towards the ban threshold.
type entry struct {
	timestamps  []time.Time
	bannedUntil time.Time
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed    bool
	Banned     bool
	RetryAfter time.Duration
	Remaining  int
}

// Stats is a point in time snapshot of the limiter state.
type Stats struct {
	Entries       int
	Banned        int
	TotalRequests int
}

// Limiter is a sliding-window admission limiter with escalating bans.
type Limiter struct {
	cfg         Config
	window      time.Duration
	banDuration time.Duration
	log         mlog.LoggerIFace
	now         func() time.Time

	entries map[string]*entry
	stopCh  chan struct{}
	doneCh  chan struct{}

	mut sync.RWMutex
}

type Option func(l *Limiter) error

// WithNowFunc overrides the limiter's time source. Used in tests.
func WithNowFunc(now func() time.Time) Option {
	return func(l *Limiter) error {
		if now == nil {
			return fmt.Errorf("now function should not be nil")
		}
		l.now = now
		return nil
	}
}

// New creates a started limiter. The caller should Close it when done to
// stop the background sweeper.
func New(cfg Config, log mlog.LoggerIFace, opts ...Option) (*Limiter, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	if log == nil {
		return nil, fmt.Errorf("log should not be nil")
	}

	l := &Limiter{
		cfg:         cfg,
		window:      time.Duration(cfg.Window),
		banDuration: time.Duration(cfg.BanDuration),
		log:         log,
		now:         time.Now,
		entries:     make(map[string]*entry),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	go l.sweeper()

	return l, nil
}

// Check records an admission attempt for the given identifier and returns
// whether it should be allowed.
func (l *Limiter) Check(id string) Decision {
	l.mut.Lock()
	defer l.mut.Unlock()

	now := l.now()

	e := l.entries[id]
	if e == nil {
		e = &entry{}
		l.entries[id] = e
	}

	if e.bannedUntil.After(now) {
		return Decision{
			Allowed:    false,
			Banned:     true,
			RetryAfter: e.bannedUntil.Sub(now),
		}
	}

	e.prune(now.Add(-l.window))

	if len(e.timestamps) >= l.cfg.Limit+l.cfg.BanThreshold {
		e.bannedUntil = now.Add(l.banDuration)
		e.timestamps = nil
		l.log.Warn("limiter: identifier banned",
			mlog.String("id", id),
			mlog.Any("banDuration", l.banDuration))
		return Decision{
			Allowed:    false,
			Banned:     true,
			RetryAfter: l.banDuration,
		}
	}

	if len(e.timestamps) >= l.cfg.Limit {
		// Over the limit but below the ban threshold. The attempt still
		// counts towards the threshold so that a sustained burst
		// escalates into a ban.
		retryAfter := l.window - now.Sub(e.timestamps[0])
		e.timestamps = append(e.timestamps, now)
		return Decision{
			Allowed:    false,
			RetryAfter: retryAfter,
		}
	}

	e.timestamps = append(e.timestamps, now)

	return Decision{
		Allowed:   true,
		Remaining: l.cfg.Limit - len(e.timestamps),
	}
}

// Reset clears both the request history and any ban for the identifier.
func (l *Limiter) Reset(id string) {
	l.mut.Lock()
	defer l.mut.Unlock()
	delete(l.entries, id)
}

// IsBanned reports whether the identifier has a live ban.
func (l *Limiter) IsBanned(id string) bool {
	l.mut.RLock()
	defer l.mut.RUnlock()
	e := l.entries[id]
	return e != nil && e.bannedUntil.After(l.now())
}

// GetBanned returns the identifiers with a live ban.
func (l *Limiter) GetBanned() []string {
	l.mut.RLock()
	defer l.mut.RUnlock()

	now := l.now()
	var banned []string
	for id, e := range l.entries {
		if e.bannedUntil.After(now) {
			banned = append(banned, id)
		}
	}
	return banned
}

// GetStats returns a snapshot of the limiter state.
func (l *Limiter) GetStats() Stats {
	l.mut.RLock()
	defer l.mut.RUnlock()

	now := l.now()
	var stats Stats
	stats.Entries = len(l.entries)
	for _, e := range l.entries {
		stats.TotalRequests += len(e.timestamps)
		if e.bannedUntil.After(now) {
			stats.Banned++
		}
	}
	return stats
}

// Size returns the number of tracked identifiers.
func (l *Limiter) Size() int {
	l.mut.RLock()
	defer l.mut.RUnlock()
	return len(l.entries)
}

// Close stops the background sweeper.
func (l *Limiter) Close() {
	close(l.stopCh)
	<-l.doneCh
}

// sweeper periodically drops entries with no recent requests and expired
// bans to keep the map bounded.
func (l *Limiter) sweeper() {
	defer close(l.doneCh)
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCh:
			return
		}
	}
}

func (l *Limiter) sweep() {
	l.mut.Lock()
	defer l.mut.Unlock()

	now := l.now()
	for id, e := range l.entries {
		e.prune(now.Add(-l.window))
		if len(e.timestamps) == 0 && !e.bannedUntil.After(now) {
			delete(l.entries, id)
		}
	}
}

func (e *entry) prune(cutoff time.Time) {
	firstValid := 0
	for i, ts := range e.timestamps {
		if ts.After(cutoff) {
			break
		}
		firstValid = i + 1
	}
	if firstValid > 0 {
		e.timestamps = e.timestamps[firstValid:]
	}
}
