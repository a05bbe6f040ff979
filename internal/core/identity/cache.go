// Package identity holds the in-memory source of truth for the current user.
//
// The cache has a single entry. Only the auth controller writes to it; any
// number of observers may read or subscribe. Writes carry tickets issued by
// Begin so that a response which arrives after a newer one has already been
// applied is dropped instead of overwriting it.
package identity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tlobni/session-core/internal/core/domain"
)

// DefaultStaleAfter matches the five minute freshness window of the mobile app.
const DefaultStaleAfter = 5 * time.Minute

const currentUserKey = "current-user"

// Presence distinguishes "never fetched" from the explicit absent marker.
type Presence int

const (
	PresenceUnknown Presence = iota
	PresencePresent
	PresenceAbsent
)

func (p Presence) String() string {
	switch p {
	case PresencePresent:
		return "present"
	case PresenceAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Entry is a snapshot of the current-user record.
type Entry struct {
	Presence  Presence
	User      *domain.User
	Loading   bool
	Err       error
	UpdatedAt time.Time
	Stale     bool
}

// State maps the entry onto the session lifecycle.
func (e Entry) State() domain.State {
	if e.Loading {
		return domain.Authenticating()
	}
	switch e.Presence {
	case PresencePresent:
		return domain.Authenticated(*e.User)
	case PresenceAbsent:
		return domain.Anonymous()
	default:
		return domain.Unknown()
	}
}

// Observer receives the entry after every change. Observers run on the
// writer's goroutine and must not write to the cache. They may subscribe
// and unsubscribe, including themselves.
type Observer func(Entry)

// FetchFunc resolves the current user. A nil user with a nil error means
// the server confirmed there is no session.
type FetchFunc func(ctx context.Context) (*domain.User, error)

// Ticket orders writes. Tickets are issued in increasing order by Begin.
type Ticket uint64

type Option func(*Cache)

// WithStaleAfter sets how long a resolved entry stays fresh. Zero disables
// time based staleness.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Cache) { c.staleAfter = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

type Cache struct {
	mu          sync.Mutex
	presence    Presence
	user        *domain.User
	err         error
	updatedAt   time.Time
	invalidated bool
	inflight    int
	issued      Ticket
	applied     Ticket
	cleared     Ticket

	staleAfter time.Duration
	now        func() time.Time

	// deliverMu orders notifications; notifyMu guards the observer set only,
	// so observers may subscribe and unsubscribe while being notified.
	deliverMu    sync.Mutex
	notifyMu     sync.Mutex
	observers    map[uint64]Observer
	nextObserver uint64

	group singleflight.Group
}

func New(opts ...Option) *Cache {
	c := &Cache{
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		observers:  make(map[uint64]Observer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns a snapshot of the entry.
func (c *Cache) Read() Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Cache) snapshot() Entry {
	e := Entry{
		Presence:  c.presence,
		Loading:   c.inflight > 0,
		Err:       c.err,
		UpdatedAt: c.updatedAt,
	}
	if c.user != nil {
		u := *c.user
		e.User = &u
	}
	e.Stale = c.presence == PresenceUnknown || c.invalidated ||
		(c.staleAfter > 0 && c.now().Sub(c.updatedAt) > c.staleAfter)
	return e
}

// Begin marks an operation in flight and returns its ticket. Every ticket
// must be settled with Write, Fail or Abandon.
func (c *Cache) Begin() Ticket {
	c.mu.Lock()
	c.issued++
	c.inflight++
	t := c.issued
	c.mu.Unlock()

	c.notify()
	return t
}

func (c *Cache) settle() {
	if c.inflight > 0 {
		c.inflight--
	}
}

// Write settles t and replaces the entry with user, or with the absent
// marker when user is nil. It reports false when a newer ticket was already
// applied, in which case the entry is left as is.
func (c *Cache) Write(t Ticket, user *domain.User) bool {
	c.mu.Lock()
	c.settle()
	applied := t > c.applied
	if applied {
		c.applied = t
		c.setLocked(user)
	}
	c.mu.Unlock()

	c.notify()
	return applied
}

// WriteFenced settles t, replaces the entry and fences out every ticket
// issued so far, older or newer than t. It is for results that supersede
// any read in flight, such as a successful login. Only a Clear issued after
// t wins over it.
func (c *Cache) WriteFenced(t Ticket, user *domain.User) bool {
	c.mu.Lock()
	c.settle()
	applied := t > c.cleared
	if applied {
		c.applied = c.issued
		c.setLocked(user)
	}
	c.mu.Unlock()

	c.notify()
	return applied
}

// Abandon settles t without touching the entry.
func (c *Cache) Abandon(t Ticket) {
	c.mu.Lock()
	c.settle()
	c.mu.Unlock()

	c.notify()
}

// Fail settles t and records err on the entry, keeping the last value.
func (c *Cache) Fail(t Ticket, err error) {
	c.mu.Lock()
	c.settle()
	if t > c.applied {
		c.err = err
	}
	c.mu.Unlock()

	c.notify()
}

// Clear sets the absent marker unconditionally and fences out every ticket
// issued so far.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.applied = c.issued
	c.cleared = c.issued
	c.setLocked(nil)
	c.mu.Unlock()

	c.notify()
}

func (c *Cache) setLocked(user *domain.User) {
	if user == nil {
		c.presence = PresenceAbsent
		c.user = nil
	} else {
		u := *user
		c.presence = PresencePresent
		c.user = &u
	}
	c.err = nil
	c.updatedAt = c.now()
	c.invalidated = false
}

// Invalidate marks the entry stale so the next read-through refreshes it.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.invalidated = true
	c.mu.Unlock()

	c.notify()
}

// Subscribe registers o and returns a function that removes it. The returned
// function may be called more than once.
func (c *Cache) Subscribe(o Observer) (unsubscribe func()) {
	c.notifyMu.Lock()
	id := c.nextObserver
	c.nextObserver++
	c.observers[id] = o
	c.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.notifyMu.Lock()
			delete(c.observers, id)
			c.notifyMu.Unlock()
		})
	}
}

// notify delivers the entry as it is at delivery time, so the last
// notification an observer sees is never older than the last write. An
// observer removed during a delivery is skipped from then on.
func (c *Cache) notify() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.notifyMu.Lock()
	ids := make([]uint64, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	c.notifyMu.Unlock()
	if len(ids) == 0 {
		return
	}

	e := c.Read()
	for _, id := range ids {
		c.notifyMu.Lock()
		o, ok := c.observers[id]
		c.notifyMu.Unlock()
		if ok {
			o(e)
		}
	}
}

// Outcome reports what a Fetch did to the entry.
type Outcome int

const (
	// OutcomeNone means the call failed or its result was superseded.
	OutcomeNone Outcome = iota
	OutcomePresent
	OutcomeAbsent
)

// Fetch resolves the current user through fn. Concurrent callers share a
// single call: while one is in flight no other is started, and every caller
// gets the same Outcome. The shared call is detached from the first caller's
// cancellation; every caller still stops waiting when its own ctx is done.
func (c *Cache) Fetch(ctx context.Context, fn FetchFunc) (Entry, Outcome, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(currentUserKey, func() (any, error) {
		t := c.Begin()
		user, err := fn(shared)
		if err != nil {
			c.Fail(t, err)
			return OutcomeNone, err
		}
		if !c.Write(t, user) {
			return OutcomeNone, nil
		}
		if user == nil {
			return OutcomeAbsent, nil
		}
		return OutcomePresent, nil
	})

	select {
	case <-ctx.Done():
		return c.Read(), OutcomeNone, ctx.Err()
	case res := <-ch:
		outcome, _ := res.Val.(Outcome)
		return c.Read(), outcome, res.Err
	}
}
