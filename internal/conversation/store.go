package conversation

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
)

const (
	DefaultCapacity = 1000
	DefaultTTL      = 2 * time.Hour
	// DefaultMaxBytes caps the encoded media held across all sessions.
	DefaultMaxBytes int64 = 512 << 20
)

// StoreOptions configures a Store. Zero values pick the defaults.
type StoreOptions struct {
	Capacity int
	TTL      time.Duration
	MaxBytes int64
	// OnEvict runs for every session leaving the store: expiry, LRU or byte
	// pressure, Remove and Replace. It runs under the cache lock and must not
	// call back into the Store.
	OnEvict func(id string)
}

// Store holds live sessions in memory. Least recently used and expired
// sessions are dropped, and the oldest ones go first once the sessions hold
// more than MaxBytes. Nothing is persisted.
type Store struct {
	cache    *expirable.LRU[string, *Session]
	bytes    atomic.Int64
	maxBytes int64
}

func NewStore(opts StoreOptions) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}

	st := &Store{maxBytes: opts.MaxBytes}
	onEvict := func(id string, s *Session) {
		st.bytes.Add(-s.Size())
		log.Debug().Str("case_id", id).Int("turns", s.Len()).Msg("Conversation evicted")
		if opts.OnEvict != nil {
			opts.OnEvict(id)
		}
	}
	st.cache = expirable.NewLRU[string, *Session](opts.Capacity, onEvict, opts.TTL)
	return st
}

func (st *Store) Put(s *Session) {
	if _, ok := st.cache.Peek(s.ID); !ok {
		st.bytes.Add(s.Size())
	}
	st.cache.Add(s.ID, s)
	st.shrink()
}

func (st *Store) Get(id string) (*Session, bool) {
	return st.cache.Get(id)
}

// Remove drops a session. It reports whether the session was present.
func (st *Store) Remove(id string) bool {
	return st.cache.Remove(id)
}

// Replace stores next and drops the session it supersedes, if any.
func (st *Store) Replace(previousID string, next *Session) {
	if previousID != "" && previousID != next.ID {
		st.cache.Remove(previousID)
	}
	st.Put(next)
}

func (st *Store) Len() int {
	return st.cache.Len()
}

// Bytes is the memory currently held by all sessions.
func (st *Store) Bytes() int64 {
	return st.bytes.Load()
}

// shrink evicts the oldest sessions until the byte budget holds. The newest
// session always stays, even if it alone exceeds the budget.
func (st *Store) shrink() {
	for st.bytes.Load() > st.maxBytes && st.cache.Len() > 1 {
		if _, _, ok := st.cache.RemoveOldest(); !ok {
			return
		}
	}
}
