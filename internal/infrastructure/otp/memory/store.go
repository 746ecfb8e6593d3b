// Package memory keeps one-time codes in process memory.
package memory

import (
	"sync"
	"time"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
)

type key struct {
	code  string
	email string
}

// Store holds issued codes keyed by (code, email). Expired entries are purged on
// every access.
type Store struct {
	mu      sync.RWMutex
	entries map[key]domain.OTPEntry
}

func New() *Store {
	return &Store{entries: make(map[key]domain.OTPEntry)}
}

// Issue records entry unless its code is already live for any address.
func (s *Store) Issue(entry domain.OTPEntry, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(now)

	for k := range s.entries {
		if k.code == entry.Code {
			return false
		}
	}
	s.entries[key{code: entry.Code, email: entry.Email}] = entry
	return true
}

// Consume removes and reports a live entry for (code, email).
func (s *Store) Consume(code, email string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purge(now)

	k := key{code: code, email: email}
	if _, ok := s.entries[k]; !ok {
		return false
	}
	delete(s.entries, k)
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) purge(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.ExpiresAt) {
			delete(s.entries, k)
		}
	}
}
