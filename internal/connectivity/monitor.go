// Package connectivity tracks network reachability and notifies listeners on
// genuine online/offline transitions.
package connectivity

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eldtechnologies/carebot/internal/metrics"
)

// Event describes one transition.
type Event struct {
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Listener is invoked once per transition.
type Listener func(Event)

// Monitor holds the process-wide connectivity state. The state is written only
// through Set; everything else reads it.
type Monitor struct {
	online atomic.Bool

	mu        sync.Mutex // guards transitions and listeners
	listeners map[int]Listener
	nextID    int
	seq       uint64 // transitions so far

	notifyMu  sync.Mutex // serializes listener delivery
	delivered uint64     // seq of the last delivered transition
	now       func() time.Time
}

// NewMonitor creates a monitor seeded with the reachability reported at startup.
func NewMonitor(initial bool) *Monitor {
	m := &Monitor{
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
	m.online.Store(initial)
	return m
}

// Online reports the current state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Set records a reachability signal. Repeated identical signals are ignored.
// It reports whether a transition happened; listeners have run by the time it
// returns. The new state is visible to Online before any listener runs, so a
// long-running listener can observe a later flip. Listeners see transitions
// in order: one overtaken by a later transition before delivery is skipped,
// so the last event delivered always matches Online.
func (m *Monitor) Set(online bool) bool {
	m.mu.Lock()
	if m.online.Load() == online {
		m.mu.Unlock()
		return false
	}
	m.online.Store(online)
	m.seq++
	seq := m.seq
	ls := make([]Listener, 0, len(m.listeners))
	for id := 0; id < m.nextID; id++ {
		if l, ok := m.listeners[id]; ok {
			ls = append(ls, l)
		}
	}
	m.mu.Unlock()

	state := "offline"
	if online {
		state = "online"
	}
	metrics.ConnectivityTransitions.WithLabelValues(state).Inc()

	ev := Event{Online: online, At: m.now()}

	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	if seq <= m.delivered {
		return true
	}
	m.delivered = seq
	for _, l := range ls {
		l(ev)
	}
	return true
}

// Subscribe registers l and returns a function that removes it. Listeners are
// invoked in registration order.
func (m *Monitor) Subscribe(l Listener) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = l
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}
