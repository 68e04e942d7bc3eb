// Package view holds the per-session UI state and its reducer. State never
// changes except through Reduce.
package view

import (
	"sync"

	"fintrack/internal/core"
)

// Tab is a top-level screen.
type Tab string

const (
	TabDashboard Tab = "dashboard"
	TabAnalytics Tab = "analytics"
	TabHistory   Tab = "history"
	TabAdvisor   Tab = "advisor"
)

// ParseTab maps unknown names to the dashboard.
func ParseTab(s string) Tab {
	switch t := Tab(s); t {
	case TabAnalytics, TabHistory, TabAdvisor:
		return t
	default:
		return TabDashboard
	}
}

type State struct {
	Tab         Tab
	ModalOpen   bool
	Granularity core.Granularity
	Advice      []string
	Loading     bool
}

// Initial is the state of a fresh session.
func Initial() State {
	return State{Tab: TabDashboard, Granularity: core.Month}
}

// Action is one state transition.
type Action interface {
	apply(State) State
}

type (
	SelectTab         struct{ Tab Tab }
	OpenModal         struct{}
	CloseModal        struct{}
	SelectGranularity struct{ Granularity core.Granularity }
	AdviceRequested   struct{}
	AdviceReceived    struct{ Tips []string }
	// SubmitResult closes the entry form only when a transaction was created.
	SubmitResult struct{ Created bool }
)

func (a SelectTab) apply(s State) State {
	s.Tab = a.Tab
	s.ModalOpen = false
	return s
}

func (OpenModal) apply(s State) State  { s.ModalOpen = true; return s }
func (CloseModal) apply(s State) State { s.ModalOpen = false; return s }

func (a SelectGranularity) apply(s State) State {
	s.Granularity = a.Granularity
	return s
}

func (AdviceRequested) apply(s State) State {
	s.Loading = true
	return s
}

func (a AdviceReceived) apply(s State) State {
	s.Advice = append([]string(nil), a.Tips...)
	s.Loading = false
	return s
}

func (a SubmitResult) apply(s State) State {
	if a.Created {
		s.ModalOpen = false
	}
	return s
}

// Reduce returns the state after a. A request for advice while one is
// loading is ignored.
func Reduce(s State, a Action) State {
	if _, ok := a.(AdviceRequested); ok && s.Loading {
		return s
	}
	if a == nil {
		return s
	}
	return a.apply(s)
}

// Sessions keeps one State per chat or client.
type Sessions struct {
	mu     sync.Mutex
	states map[int64]State
}

func NewSessions() *Sessions {
	return &Sessions{states: make(map[int64]State)}
}

func (s *Sessions) Get(id int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[id]; ok {
		return st
	}
	return Initial()
}

// Dispatch applies a to the session and returns the previous and new state.
func (s *Sessions) Dispatch(id int64, a Action) (before, after State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	before, ok := s.states[id]
	if !ok {
		before = Initial()
	}
	after = Reduce(before, a)
	s.states[id] = after
	return before, after
}
