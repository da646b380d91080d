// Package netmon tracks device connectivity. The platform-reported online
// flag is advisory only; actual transport failures are the ground truth
// and are recorded separately via ReportIssue.
package netmon

import (
	"sync"
	"time"
)

// Status is a point-in-time connectivity snapshot.
type Status struct {
	Online         bool      `json:"online"`
	HasIssues      bool      `json:"has_network_issues"`
	LastTransition time.Time `json:"last_transition"`
}

type restoreSub struct {
	id int
	fn func()
}

// Monitor tracks the online/offline flag plus an independent
// network-issues flag for requests that fail despite a reported
// "online" state.
type Monitor struct {
	mu             sync.Mutex
	online         bool
	hasIssues      bool
	lastTransition time.Time
	nextID         int
	restoreSubs    []restoreSub
}

// New creates a monitor that starts online.
func New() *Monitor {
	return &Monitor{online: true, lastTransition: time.Now()}
}

// SetOnline records a connectivity transition. A transition to online
// clears the issues flag and fires restore handlers; a transition to
// offline leaves the issues flag untouched. Repeating the current state
// is a no-op.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if online == m.online {
		m.mu.Unlock()
		return
	}
	m.online = online
	m.lastTransition = time.Now()
	var handlers []func()
	if online {
		m.hasIssues = false
		handlers = make([]func(), len(m.restoreSubs))
		for i, sub := range m.restoreSubs {
			handlers[i] = sub.fn
		}
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

// ReportIssue flags that a request failed while the platform reported an
// online state.
func (m *Monitor) ReportIssue() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hasIssues = true
}

// Online reports the current connectivity flag.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Snapshot returns the current connectivity state.
func (m *Monitor) Snapshot() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Online:         m.online,
		HasIssues:      m.hasIssues,
		LastTransition: m.lastTransition,
	}
}

// OnRestore registers a handler fired on each offline-to-online
// transition, in registration order. It returns an unsubscribe function.
func (m *Monitor) OnRestore(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.restoreSubs = append(m.restoreSubs, restoreSub{id: id, fn: fn})
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.restoreSubs {
			if sub.id == id {
				m.restoreSubs = append(m.restoreSubs[:i], m.restoreSubs[i+1:]...)
				return
			}
		}
	}
}
