// Package screens keeps the live state of the list screens each browser
// session has open and turns it into template models.
package screens

import (
	"context"
	"sync"
	"time"
)

// Closer is implemented by screens holding subscriptions.
type Closer interface {
	Close()
}

type slot struct {
	name    string
	screen  any
	touched time.Time
}

// Store holds at most one live screen per session. Mounting a different
// screen discards the previous one, which is how navigating away drops its
// filter state.
type Store struct {
	mu    sync.Mutex
	slots map[string]*slot
	idle  time.Duration
	now   func() time.Time
}

// NewStore builds a store evicting screens untouched for idle.
func NewStore(idle time.Duration) *Store {
	return &Store{slots: make(map[string]*slot), idle: idle, now: time.Now}
}

// Mount returns the live screen name of session, building it when the session
// shows another screen or none.
func Mount[S any](s *Store, session, name string, build func() S) S {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if current, ok := s.slots[session]; ok {
		if current.name == name {
			if screen, ok := current.screen.(S); ok {
				current.touched = now
				return screen
			}
		}
		closeScreen(current.screen)
	}
	screen := build()
	s.slots[session] = &slot{name: name, screen: screen, touched: now}
	return screen
}

// Current reports the name of the screen session shows.
func (s *Store) Current(session string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.slots[session]
	if !ok {
		return "", false
	}
	return current.name, true
}

// Drop discards the screen of session.
func (s *Store) Drop(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.slots[session]; ok {
		closeScreen(current.screen)
		delete(s.slots, session)
	}
}

// Len returns the number of live screens.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

// Sweep evicts idle screens and returns how many went away.
func (s *Store) Sweep() int {
	if s.idle <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.idle)
	evicted := 0
	for id, current := range s.slots {
		if current.touched.Before(cutoff) {
			closeScreen(current.screen)
			delete(s.slots, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps every interval until ctx ends.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func closeScreen(screen any) {
	if c, ok := screen.(Closer); ok {
		c.Close()
	}
}
