package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tlobni/session-core/internal/core/domain"
)

func amira() *domain.User {
	return &domain.User{ID: 1, Email: "amira@mail.com", Username: "amira", FullName: "Amira K.", Role: domain.RoleClient}
}

func TestCache_InitialEntryIsUnknownAndStale(t *testing.T) {
	c := New()
	e := c.Read()

	if e.Presence != PresenceUnknown {
		t.Fatalf("expected unknown presence, got %s", e.Presence)
	}
	if !e.Stale {
		t.Fatalf("expected never-fetched entry to be stale")
	}
	if e.State().Kind != domain.StateUnknown {
		t.Fatalf("expected unknown state, got %s", e.State())
	}
}

func TestCache_WriteUserAndAbsentMarker(t *testing.T) {
	c := New()

	tk := c.Begin()
	if !c.Read().Loading {
		t.Fatalf("expected loading while ticket outstanding")
	}
	if c.Read().State().Kind != domain.StateAuthenticating {
		t.Fatalf("expected authenticating state while loading")
	}
	if !c.Write(tk, amira()) {
		t.Fatalf("expected write to apply")
	}

	e := c.Read()
	if e.Loading || e.Presence != PresencePresent || e.User == nil || *e.User != *amira() {
		t.Fatalf("unexpected entry after write: %+v", e)
	}
	if e.Stale {
		t.Fatalf("fresh entry reported stale")
	}

	c.Write(c.Begin(), nil)
	e = c.Read()
	if e.Presence != PresenceAbsent || e.User != nil {
		t.Fatalf("expected absent marker, got %+v", e)
	}
	if e.State().Kind != domain.StateAnonymous {
		t.Fatalf("expected anonymous state, got %s", e.State())
	}
}

func TestCache_ReadReturnsCopy(t *testing.T) {
	c := New()
	c.Write(c.Begin(), amira())

	e := c.Read()
	e.User.Username = "mutated"

	if c.Read().User.Username != "amira" {
		t.Fatalf("cache entry was mutated through a snapshot")
	}
}

func TestCache_StaleResponseIsDiscarded(t *testing.T) {
	c := New()

	bootstrap := c.Begin()
	login := c.Begin()

	if !c.Write(login, amira()) {
		t.Fatalf("expected login write to apply")
	}
	if c.Write(bootstrap, nil) {
		t.Fatalf("expected older bootstrap write to be discarded")
	}

	e := c.Read()
	if e.Presence != PresencePresent || e.Loading {
		t.Fatalf("login result was clobbered: %+v", e)
	}
}

func TestCache_ClearFencesInflightTickets(t *testing.T) {
	c := New()
	c.Write(c.Begin(), amira())

	pending := c.Begin()
	c.Clear()

	if c.Write(pending, amira()) {
		t.Fatalf("expected write issued before Clear to be discarded")
	}
	if c.Read().Presence != PresenceAbsent {
		t.Fatalf("expected absent after clear")
	}
}

func TestCache_FailKeepsValueAndRecordsError(t *testing.T) {
	c := New()
	c.Write(c.Begin(), amira())

	boom := errors.New("boom")
	c.Fail(c.Begin(), boom)

	e := c.Read()
	if e.Presence != PresencePresent || !errors.Is(e.Err, boom) {
		t.Fatalf("unexpected entry after failure: %+v", e)
	}

	c.Write(c.Begin(), amira())
	if c.Read().Err != nil {
		t.Fatalf("expected successful write to clear error")
	}
}

func TestCache_AbandonLeavesEntry(t *testing.T) {
	c := New()
	tk := c.Begin()
	c.Abandon(tk)

	e := c.Read()
	if e.Loading || e.Presence != PresenceUnknown || e.Err != nil {
		t.Fatalf("abandon changed the entry: %+v", e)
	}
}

func TestCache_InvalidateAndTimeStaleness(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New(WithStaleAfter(time.Minute), WithClock(func() time.Time { return now }))
	c.Write(c.Begin(), amira())

	if c.Read().Stale {
		t.Fatalf("expected fresh entry")
	}

	c.Invalidate()
	if !c.Read().Stale {
		t.Fatalf("expected invalidated entry to be stale")
	}

	c.Write(c.Begin(), amira())
	now = now.Add(2 * time.Minute)
	if !c.Read().Stale {
		t.Fatalf("expected entry older than staleAfter to be stale")
	}
}

func TestCache_SubscribeAndUnsubscribe(t *testing.T) {
	c := New()

	var got []Entry
	unsubscribe := c.Subscribe(func(e Entry) { got = append(got, e) })

	c.Write(c.Begin(), amira())
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications (begin, write), got %d", len(got))
	}
	if last := got[len(got)-1]; last.Presence != PresencePresent {
		t.Fatalf("last notification not the written value: %+v", last)
	}

	unsubscribe()
	unsubscribe()
	c.Clear()
	if len(got) != 2 {
		t.Fatalf("observer notified after unsubscribe")
	}
}

func TestCache_ObserverMayUnsubscribeItself(t *testing.T) {
	c := New()

	var (
		calls int
		unsub func()
	)
	unsub = c.Subscribe(func(Entry) {
		calls++
		unsub()
	})
	var late []Entry
	c.Subscribe(func(Entry) {
		// Subscribing from inside a delivery must not block either.
		if late == nil {
			late = []Entry{}
			c.Subscribe(func(e Entry) { late = append(late, e) })
		}
	})

	done := make(chan struct{})
	go func() {
		c.Write(c.Begin(), amira())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer blocked by an observer changing the subscriptions")
	}

	if calls != 1 {
		t.Fatalf("expected the one-shot observer to run once, ran %d times", calls)
	}
	if len(late) == 0 {
		t.Fatalf("observer added during a delivery was never notified")
	}
}

func TestCache_WriteFencedSupersedesReadsInFlight(t *testing.T) {
	c := New()

	login := c.Begin()
	refresh := c.Begin()
	if !c.WriteFenced(login, amira()) {
		t.Fatalf("expected fenced write to apply")
	}
	if c.Write(refresh, nil) {
		t.Fatalf("refresh issued before the fenced write must be dropped")
	}
	if e := c.Read(); e.Presence != PresencePresent || e.Loading {
		t.Fatalf("unexpected entry %+v", e)
	}

	// A read that resolved first is overridden as well.
	c = New()
	login = c.Begin()
	refresh = c.Begin()
	c.Write(refresh, nil)
	if !c.WriteFenced(login, amira()) || c.Read().Presence != PresencePresent {
		t.Fatalf("fenced write must override an earlier absent result")
	}

	// Clear issued after the ticket still wins.
	c = New()
	login = c.Begin()
	c.Clear()
	if c.WriteFenced(login, amira()) || c.Read().Presence != PresenceAbsent {
		t.Fatalf("fenced write must not resurrect a cleared session")
	}
}

func TestCache_FetchDeduplicatesConcurrentCallers(t *testing.T) {
	c := New()

	var (
		calls   atomic.Int32
		current atomic.Int32
		maxSeen atomic.Int32
		entered = make(chan struct{}, 16)
		release = make(chan struct{})
	)
	fetch := func(ctx context.Context) (*domain.User, error) {
		calls.Add(1)
		n := current.Add(1)
		defer current.Add(-1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		entered <- struct{}{}
		<-release
		return amira(), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, _, err := c.Fetch(context.Background(), fetch); err != nil {
			t.Errorf("fetch: %v", err)
		}
	}()
	<-entered

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.Fetch(context.Background(), fetch); err != nil {
				t.Errorf("fetch: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if maxSeen.Load() != 1 {
		t.Fatalf("expected at most one outstanding fetch, saw %d", maxSeen.Load())
	}
	if calls.Load() > callers {
		t.Fatalf("unexpected number of fetches: %d", calls.Load())
	}
	if e := c.Read(); e.Presence != PresencePresent || e.Loading {
		t.Fatalf("unexpected entry after fetch: %+v", e)
	}
}

func TestCache_FetchAbsentAndError(t *testing.T) {
	c := New()

	e, outcome, err := c.Fetch(context.Background(), func(context.Context) (*domain.User, error) { return nil, nil })
	if err != nil || e.Presence != PresenceAbsent || outcome != OutcomeAbsent {
		t.Fatalf("expected absent entry, got %+v, %v, %v", e, outcome, err)
	}

	boom := errors.New("unreachable")
	e, outcome, err = c.Fetch(context.Background(), func(context.Context) (*domain.User, error) { return nil, boom })
	if !errors.Is(err, boom) || outcome != OutcomeNone {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if e.Presence != PresenceAbsent || !errors.Is(e.Err, boom) {
		t.Fatalf("expected absent entry with error, got %+v", e)
	}
}

func TestCache_FetchHonoursCallerContext(t *testing.T) {
	c := New()
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Fetch(ctx, func(context.Context) (*domain.User, error) {
		<-release
		return amira(), nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
