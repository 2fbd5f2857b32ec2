package connectivity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSetDeduplicatesSignals(t *testing.T) {
	m := NewMonitor(true)

	var events []Event
	m.Subscribe(func(ev Event) { events = append(events, ev) })

	if m.Set(true) {
		t.Fatal("identical signal reported as transition")
	}
	if !m.Set(false) {
		t.Fatal("expected transition to offline")
	}
	m.Set(false)
	m.Set(false)
	if !m.Set(true) {
		t.Fatal("expected transition to online")
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Online || !events[1].Online {
		t.Fatalf("unexpected event sequence %+v", events)
	}
}

func TestUnsubscribe(t *testing.T) {
	m := NewMonitor(false)

	calls := 0
	unsubscribe := m.Subscribe(func(Event) { calls++ })
	m.Set(true)
	unsubscribe()
	unsubscribe()
	m.Set(false)

	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestListenersRunInOrder(t *testing.T) {
	m := NewMonitor(false)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		m.Subscribe(func(Event) { order = append(order, i) })
	}
	m.Set(true)

	for i, v := range order {
		if v != i {
			t.Fatalf("listeners ran out of order: %v", order)
		}
	}
}

func TestStateVisibleDuringListener(t *testing.T) {
	m := NewMonitor(false)

	var seen bool
	m.Subscribe(func(Event) { seen = m.Online() })
	m.Set(true)

	if !seen {
		t.Fatal("listener observed stale state")
	}
}

func TestFlipDuringListenerIsObserved(t *testing.T) {
	m := NewMonitor(false)

	entered := make(chan struct{})
	release := make(chan struct{})
	var sawOffline bool

	m.Subscribe(func(ev Event) {
		if !ev.Online {
			return
		}
		close(entered)
		<-release
		sawOffline = !m.Online()
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		m.Set(true)
	}()

	<-entered
	go m.Set(false)
	// Set(false) updates state before waiting for delivery.
	deadline := time.Now().Add(2 * time.Second)
	for m.Online() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if !sawOffline {
		t.Fatal("listener did not observe the flip back to offline")
	}
}

func TestLastDeliveredEventMatchesState(t *testing.T) {
	for i := 0; i < 200; i++ {
		m := NewMonitor(i%2 == 0)

		var mu sync.Mutex
		var last *Event
		m.Subscribe(func(ev Event) {
			mu.Lock()
			last = &ev
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(online bool) {
				defer wg.Done()
				m.Set(online)
			}(g%2 == 0)
		}
		wg.Wait()

		mu.Lock()
		if last != nil && last.Online != m.Online() {
			mu.Unlock()
			t.Fatalf("iteration %d: listeners last saw online=%v, state is %v", i, last.Online, m.Online())
		}
		mu.Unlock()
	}
}

type fakeChecker struct {
	mu  sync.Mutex
	err error
}

func (f *fakeChecker) Check(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeChecker) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func TestProberFeedsMonitor(t *testing.T) {
	m := NewMonitor(true)
	c := &fakeChecker{err: errors.New("unreachable")}
	p := NewProber(c, m, time.Second, zerolog.Nop())

	if p.Probe(context.Background()) {
		t.Fatal("expected offline probe")
	}
	if m.Online() {
		t.Fatal("monitor should be offline")
	}

	c.set(nil)
	if !p.Probe(context.Background()) || !m.Online() {
		t.Fatal("monitor should be online")
	}
}

func TestProberRunStopsOnCancel(t *testing.T) {
	m := NewMonitor(false)
	p := NewProber(&fakeChecker{}, m, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !m.Online() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if !m.Online() {
		t.Fatal("expected first probe to mark monitor online")
	}
}
