// Package reports keeps rendered import reports in memory for a limited
// time so clients can download them after an import finishes.
package reports

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultTTL is how long a report stays downloadable.
const DefaultTTL = 24 * time.Hour

// DefaultCapacity bounds the number of reports held at once. When full, the
// least recently used report is evicted early.
const DefaultCapacity = 1024

type entry struct {
	content   []byte
	createdAt time.Time
}

// Store maps opaque tokens to report bytes. Entries expire lazily: an
// expired entry is removed when it is fetched or when PurgeExpired runs.
// Store is safe for concurrent use.
type Store struct {
	// mu makes check-then-remove atomic with respect to Put.
	mu      sync.Mutex
	ttl     time.Duration
	entries *lru.Cache[string, entry]
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store that keeps reports for ttl and holds at most capacity
// of them.
func New(ttl time.Duration, capacity int, opts ...Option) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	cache, err := lru.New[string, entry](capacity)
	if err != nil {
		return nil, err
	}
	s := &Store{ttl: ttl, entries: cache, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewToken returns a fresh random report token: 32 lowercase hex characters.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// TTL returns the configured time to live.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Put stores content under token, replacing any previous entry.
func (s *Store) Put(token string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Add(token, entry{content: content, createdAt: s.now()})
}

// Fetch returns the report for token. An expired report is removed and
// reported as missing.
func (s *Store) Fetch(token string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries.Get(token)
	if !ok {
		return nil, false
	}
	if s.expired(e) {
		s.entries.Remove(token)
		return nil, false
	}
	return e.content, true
}

// PurgeExpired removes every expired report and returns how many it removed.
func (s *Store) PurgeExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, token := range s.entries.Keys() {
		e, ok := s.entries.Peek(token)
		if ok && s.expired(e) {
			if s.entries.Remove(token) {
				removed++
			}
		}
	}
	return removed
}

// Len returns the number of reports currently held, expired ones included.
func (s *Store) Len() int {
	return s.entries.Len()
}

func (s *Store) expired(e entry) bool {
	return s.now().Sub(e.createdAt) > s.ttl
}
