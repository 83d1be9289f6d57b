package client

import (
	"sync"

	"crewboard-api/domain"
)

// State is the client's local view of server data, one slice per
// concern. All mutation goes through Update so that snapshots taken for
// optimistic rollback are consistent.
type State struct {
	mu sync.RWMutex
	v  View
}

// View is the payload of a State: what a frontend renders.
type View struct {
	User        domain.User
	Tasks       []domain.Task
	Groups      []domain.Group
	Invites     []domain.Group
	ActiveGroup string
	GroupTasks  []domain.Task
	Messages    []domain.Message
}

// NewState returns an empty State.
func NewState() *State {
	return &State{}
}

// View returns a copy of the current view.
func (s *State) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.clone()
}

// Update applies fn to the view under the lock.
func (s *State) Update(fn func(*View)) {
	s.mu.Lock()
	fn(&s.v)
	s.mu.Unlock()
}

// snapshot captures the view for a later rollback.
func (s *State) snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.clone()
}

// restore replaces the view with a previously taken snapshot.
func (s *State) restore(v View) {
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
}

func (v View) clone() View {
	out := v
	out.Tasks = cloneTasks(v.Tasks)
	out.GroupTasks = cloneTasks(v.GroupTasks)
	out.Groups = append([]domain.Group(nil), v.Groups...)
	out.Invites = append([]domain.Group(nil), v.Invites...)
	out.Messages = append([]domain.Message(nil), v.Messages...)
	return out
}

func cloneTasks(tasks []domain.Task) []domain.Task {
	if tasks == nil {
		return nil
	}
	out := make([]domain.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t
		out[i].Log = append([]domain.CounterEntry(nil), t.Log...)
	}
	return out
}
