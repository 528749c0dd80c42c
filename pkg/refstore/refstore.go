// Package refstore holds out-of-line values referenced by short random tokens.
//
// Values that cannot be inlined into a component custom id are parked here and
// replaced on the wire by their token. Entries with a TTL are evicted by Sweep;
// entries without one live until Delete or Clear.
package refstore

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	logPrefix = "refstore:refstore"

	// TokenLength is the length of tokens produced by NewToken.
	TokenLength = 8
)

// Entry is a stored value together with its bookkeeping.
type Entry struct {
	Token     string
	CreatedAt time.Time
	Value     interface{}
	// TTL of zero means the entry never expires on its own.
	TTL time.Duration
}

// Expired reports whether the entry outlived its TTL at now.
func (e *Entry) Expired(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// Store is the token -> value map for one framework instance.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// NewWithClock creates a Store reading time from now (tests).
func NewWithClock(now func() time.Time) *Store {
	s := New()
	s.now = now
	return s
}

// NewToken returns a fresh random token of TokenLength characters.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:TokenLength]
}

// Set stores value under token, replacing any previous entry.
func (s *Store) Set(token string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = &Entry{Token: token, CreatedAt: s.now(), Value: value, TTL: ttl}
}

// Put stores value under a newly generated token and returns a handle to it.
func (s *Store) Put(value interface{}, ttl time.Duration) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := NewToken()
	for {
		if _, taken := s.entries[token]; !taken {
			break
		}
		token = NewToken()
	}
	s.entries[token] = &Entry{Token: token, CreatedAt: s.now(), Value: value, TTL: ttl}
	return Handle{Token: token, store: s}
}

// Get returns the value for token. Missing and evicted tokens report ok=false.
func (s *Store) Get(token string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[token]
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Has reports whether token is live.
func (s *Store) Has(token string) bool {
	_, ok := s.Get(token)
	return ok
}

// Delete removes token and reports whether it was present.
func (s *Store) Delete(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[token]; !ok {
		return false
	}
	delete(s.entries, token)
	return true
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep evicts every entry whose TTL elapsed and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for token, e := range s.entries {
		if e.Expired(now) {
			delete(s.entries, token)
			evicted++
		}
	}
	if evicted > 0 {
		slog.Debug(fmt.Sprintf("%s - Swept %d expired references, %d remaining", logPrefix, evicted, len(s.entries)))
	}
	return evicted
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
}

// Handle is an opaque reference to a stored value. Callers keep it next to the
// object it stands for and pass it back to the codec to reuse the token.
type Handle struct {
	Token string
	store *Store
}

// Unref deletes the referenced value from its store.
func (h Handle) Unref() bool {
	if h.store == nil {
		return false
	}
	return h.store.Delete(h.Token)
}

// Live reports whether the handle still resolves.
func (h Handle) Live() bool {
	return h.store != nil && h.store.Has(h.Token)
}
