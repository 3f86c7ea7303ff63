package review

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultIdleTimeout is how long an untouched session stays registered.
const DefaultIdleTimeout = 12 * time.Hour

// Registry holds live sessions by token. Transitions on one session are
// serialized; different sessions proceed independently. Sessions idle for
// longer than the idle timeout are evicted.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	idle    time.Duration
	now     func() time.Time
	swept   time.Time
}

type entry struct {
	mu      sync.Mutex
	session Session
	flash   []string
	// guarded by Registry.mu
	seen time.Time
}

// NewRegistry creates an empty registry with DefaultIdleTimeout.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		idle:    DefaultIdleTimeout,
		now:     time.Now,
	}
}

// WithIdleTimeout sets the idle timeout. Zero disables eviction.
func (r *Registry) WithIdleTimeout(d time.Duration) *Registry {
	r.idle = d
	return r
}

// WithClock overrides the time source.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create registers a new logged-out session and returns its token.
func (r *Registry) Create() string {
	token := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maybeSweepLocked()
	r.entries[token] = &entry{session: NewSession(), seen: r.now()}
	return token
}

// Ensure registers token with a logged-out session if it is not known yet.
// Only server-issued keys belong here; client-supplied tokens go through
// Get and are replaced with Create when unknown.
func (r *Registry) Ensure(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maybeSweepLocked()
	if _, ok := r.liveLocked(token); !ok {
		r.entries[token] = &entry{session: NewSession(), seen: r.now()}
	}
}

// Get returns a snapshot of the session for token.
func (r *Registry) Get(token string) (Session, bool) {
	e, ok := r.lookup(token)
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, true
}

// Do runs fn with exclusive access to the session and stores the session
// it returns, also when fn fails.
func (r *Registry) Do(token string, fn func(Session) (Session, error)) (Session, error) {
	e, ok := r.lookup(token)
	if !ok {
		return Session{}, ErrUnknownSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := fn(e.session)
	e.session = next
	return next, err
}

// Remove forgets the session for token.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	delete(r.entries, token)
	r.mu.Unlock()
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	return len(r.entries)
}

// Sweep evicts idle sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

// AddFlash queues messages shown on the next render of token's page.
func (r *Registry) AddFlash(token string, msgs ...string) {
	if len(msgs) == 0 {
		return
	}
	e, ok := r.lookup(token)
	if !ok {
		return
	}
	e.mu.Lock()
	e.flash = append(e.flash, msgs...)
	e.mu.Unlock()
}

// TakeFlash returns and clears the queued messages of token.
func (r *Registry) TakeFlash(token string) []string {
	e, ok := r.lookup(token)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	msgs := e.flash
	e.flash = nil
	return msgs
}

func (r *Registry) lookup(token string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.liveLocked(token)
	if ok {
		e.seen = r.now()
	}
	return e, ok
}

func (r *Registry) liveLocked(token string) (*entry, bool) {
	e, ok := r.entries[token]
	if !ok {
		return nil, false
	}
	if r.expiredLocked(e, r.now()) {
		delete(r.entries, token)
		return nil, false
	}
	return e, true
}

func (r *Registry) expiredLocked(e *entry, now time.Time) bool {
	return r.idle > 0 && now.Sub(e.seen) > r.idle
}

// maybeSweepLocked sweeps at most once per tenth of the idle timeout.
func (r *Registry) maybeSweepLocked() {
	if r.idle <= 0 || r.now().Sub(r.swept) < r.idle/10 {
		return
	}
	r.sweepLocked()
}

func (r *Registry) sweepLocked() int {
	now := r.now()
	r.swept = now
	if r.idle <= 0 {
		return 0
	}
	removed := 0
	for token, e := range r.entries {
		if r.expiredLocked(e, now) {
			delete(r.entries, token)
			removed++
		}
	}
	return removed
}
