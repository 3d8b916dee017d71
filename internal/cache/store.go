// Package cache holds the most recently fetched representation of each
// entity collection or detail record, keyed by (kind, filter). It is the
// single shared store every view reads from; mutations synchronize it
// optimistically through snapshot/restore tokens.
package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RefetchFunc reloads the authoritative value for a stale key. The
// result is written back to the cache even when no consumer is watching
// anymore; errors are logged and never surfaced to a defunct view.
type RefetchFunc func(ctx context.Context, key Key) (any, error)

type entry struct {
	value any
	stale bool
}

// Token captures the values of every key under a set of kinds so a
// failed mutation can restore them exactly.
type Token struct {
	kinds  []Kind
	values map[Key]any
}

// Store is the process-wide query cache. All operations are synchronous
// and non-blocking; only background refetches touch the network.
type Store struct {
	mu         sync.Mutex
	entries    map[Key]entry
	refetchers map[Kind]RefetchFunc
	timeout    time.Duration
	logger     *zap.Logger
}

// NewStore creates an empty cache
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		entries:    make(map[Key]entry),
		refetchers: make(map[Kind]RefetchFunc),
		timeout:    30 * time.Second,
		logger:     logger,
	}
}

// RegisterRefetcher installs the reload function for a kind. Keys of a
// kind without a refetcher simply stay stale until rewritten.
func (s *Store) RegisterRefetcher(kind Kind, fn RefetchFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refetchers[kind] = fn
}

// Read returns the last known value for key, or false if never fetched
func (s *Store) Read(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Write replaces the cached value for key. It never triggers a network
// call, and a Read immediately after returns the written value.
func (s *Store) Write(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{value: value}
}

// Delete removes a key outright, used when the underlying entity was
// deleted and a stale detail record must not linger.
func (s *Store) Delete(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Keys returns every cached key of the given kind
func (s *Store) Keys(kind Kind) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []Key
	for k := range s.entries {
		if k.Kind == kind {
			keys = append(keys, k)
		}
	}
	return keys
}

// Snapshot captures the current values of every key under the given
// kinds. The returned token restores exactly that state.
func (s *Store) Snapshot(kinds ...Kind) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := Token{
		kinds:  append([]Kind(nil), kinds...),
		values: make(map[Key]any),
	}
	for k, e := range s.entries {
		for _, kind := range kinds {
			if k.Kind == kind {
				token.values[k] = e.value
				break
			}
		}
	}
	return token
}

// Restore replaces all entries under the token's kinds with the
// captured values, discarding anything written since the snapshot.
// Restoring an untouched snapshot is a no-op.
func (s *Store) Restore(token Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.entries {
		for _, kind := range token.kinds {
			if k.Kind == kind {
				delete(s.entries, k)
				break
			}
		}
	}
	for k, v := range token.values {
		s.entries[k] = entry{value: v}
	}
}

// Invalidate marks every key under the given kinds stale and schedules
// a background refetch for each one that has a registered refetcher.
func (s *Store) Invalidate(kinds ...Kind) {
	s.mu.Lock()
	var pending []Key
	for k, e := range s.entries {
		for _, kind := range kinds {
			if k.Kind == kind {
				e.stale = true
				s.entries[k] = e
				if s.refetchers[k.Kind] != nil {
					pending = append(pending, k)
				}
				break
			}
		}
	}
	s.mu.Unlock()

	for _, key := range pending {
		go s.refetch(key)
	}
}

// IsStale reports whether a key is cached but marked stale
func (s *Store) IsStale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.stale
}

func (s *Store) refetch(key Key) {
	s.mu.Lock()
	fn := s.refetchers[key.Kind]
	s.mu.Unlock()
	if fn == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	value, err := fn(ctx, key)
	if err != nil {
		// The consumer may be long gone; a failed refetch only leaves
		// the previous value in place.
		s.logger.Warn("Background refetch failed",
			zap.String("kind", string(key.Kind)),
			zap.String("filter", key.Filter),
			zap.Error(err))
		return
	}
	s.Write(key, value)
}
