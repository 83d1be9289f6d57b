package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"crewboard-api/domain"
)

const defaultPollInterval = 5 * time.Second

// Notifier receives the error behind a rolled-back mutation so the
// frontend can surface a transient failure notice.
type Notifier func(error)

// SyncerOptions tune a Syncer.
type SyncerOptions struct {
	// PollInterval is the refresh cadence for shared group state.
	PollInterval time.Duration
	// Notify is called after every rollback. Optional.
	Notify Notifier
}

// Syncer applies the optimistic-mutation discipline: every write is
// applied to local state first, sent to the server, and rolled back to
// the pre-mutation snapshot if the server rejects it. Shared group
// state is additionally converged by interval polling.
type Syncer struct {
	api      *API
	state    *State
	interval time.Duration
	notify   Notifier

	suspend chan bool
	poke    chan struct{}
}

// NewSyncer wires a Syncer over an API client and a State.
func NewSyncer(api *API, state *State, opts SyncerOptions) *Syncer {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(error) {}
	}
	return &Syncer{
		api:      api,
		state:    state,
		interval: interval,
		notify:   notify,
		suspend:  make(chan bool, 1),
		poke:     make(chan struct{}, 1),
	}
}

// mutate runs one optimistic round trip: snapshot, apply, fire,
// rollback on failure.
func (s *Syncer) mutate(ctx context.Context, apply func(*View), fire func(context.Context) error) error {
	snapshot := s.state.snapshot()
	s.state.Update(apply)
	if err := fire(ctx); err != nil {
		s.state.restore(snapshot)
		s.notify(err)
		return err
	}
	return nil
}

// SetTasks replaces the personal task list.
func (s *Syncer) SetTasks(ctx context.Context, tasks []domain.Task) error {
	return s.mutate(ctx,
		func(v *View) { v.Tasks = cloneTasks(tasks) },
		func(ctx context.Context) error { return s.api.SaveTasks(ctx, tasks, false) },
	)
}

// ClearTasks empties the personal collection. This is the only path
// that submits an empty list, and it does so with explicit intent.
func (s *Syncer) ClearTasks(ctx context.Context) error {
	return s.mutate(ctx,
		func(v *View) { v.Tasks = nil },
		func(ctx context.Context) error { return s.api.SaveTasks(ctx, nil, true) },
	)
}

// DeleteTask removes one personal task via the per-task path.
func (s *Syncer) DeleteTask(ctx context.Context, taskID string) error {
	return s.mutate(ctx,
		func(v *View) { v.Tasks = removeTask(v.Tasks, taskID) },
		func(ctx context.Context) error { return s.api.DeleteTask(ctx, taskID) },
	)
}

// Reorder rewrites the personal display order. Pure reorders go through
// the order-only path so task bodies are never retransmitted.
func (s *Syncer) Reorder(ctx context.Context, orderedIDs []string) error {
	return s.mutate(ctx,
		func(v *View) { v.Tasks = reorderTasks(v.Tasks, orderedIDs) },
		func(ctx context.Context) error { return s.api.SaveOrder(ctx, orderedIDs) },
	)
}

// SetGroupTasks replaces the active group's task list.
func (s *Syncer) SetGroupTasks(ctx context.Context, tasks []domain.Task) error {
	groupID := s.activeGroup()
	return s.mutate(ctx,
		func(v *View) { v.GroupTasks = cloneTasks(tasks) },
		func(ctx context.Context) error { return s.api.SaveGroupTasks(ctx, groupID, tasks, false) },
	)
}

// DeleteGroupTask removes one task from the active group.
func (s *Syncer) DeleteGroupTask(ctx context.Context, taskID string) error {
	groupID := s.activeGroup()
	return s.mutate(ctx,
		func(v *View) { v.GroupTasks = removeTask(v.GroupTasks, taskID) },
		func(ctx context.Context) error { return s.api.DeleteGroupTask(ctx, groupID, taskID) },
	)
}

// ReorderGroup rewrites the active group's display order.
func (s *Syncer) ReorderGroup(ctx context.Context, orderedIDs []string) error {
	groupID := s.activeGroup()
	return s.mutate(ctx,
		func(v *View) { v.GroupTasks = reorderTasks(v.GroupTasks, orderedIDs) },
		func(ctx context.Context) error { return s.api.SaveGroupOrder(ctx, groupID, orderedIDs) },
	)
}

// PostMessage appends a chat message optimistically, then swaps the
// provisional entry for the server's copy once confirmed.
func (s *Syncer) PostMessage(ctx context.Context, text string) error {
	groupID := s.activeGroup()
	provisionalID := uuid.NewString()
	return s.mutate(ctx,
		func(v *View) {
			v.Messages = append(v.Messages, domain.Message{
				ID:     provisionalID,
				Sender: v.User.Username,
				Text:   text,
				At:     time.Now().UnixMilli(),
			})
		},
		func(ctx context.Context) error {
			msg, err := s.api.PostMessage(ctx, groupID, text)
			if err != nil {
				return err
			}
			s.state.Update(func(v *View) {
				for i := range v.Messages {
					if v.Messages[i].ID == provisionalID {
						v.Messages[i] = msg
						return
					}
				}
			})
			return nil
		},
	)
}

// SetActiveGroup switches which group's shared state is polled and
// kicks an immediate refresh.
func (s *Syncer) SetActiveGroup(ctx context.Context, groupID string) error {
	s.state.Update(func(v *View) {
		v.ActiveGroup = groupID
		v.GroupTasks = nil
		v.Messages = nil
	})
	if groupID == "" {
		return nil
	}
	return s.RefreshGroup(ctx)
}

// Refresh re-fetches personal tasks, memberships and invites.
func (s *Syncer) Refresh(ctx context.Context) error {
	tasks, err := s.api.Tasks(ctx)
	if err != nil {
		return err
	}
	groups, invites, err := s.api.Groups(ctx)
	if err != nil {
		return err
	}
	s.state.Update(func(v *View) {
		v.Tasks = tasks
		v.Groups = groups
		v.Invites = invites
	})
	return nil
}

// RefreshGroup re-fetches the active group's tasks and chat log.
func (s *Syncer) RefreshGroup(ctx context.Context) error {
	groupID := s.activeGroup()
	if groupID == "" {
		return nil
	}
	tasks, err := s.api.GroupTasks(ctx, groupID)
	if err != nil {
		return err
	}
	messages, err := s.api.Messages(ctx, groupID, 0)
	if err != nil {
		return err
	}
	s.state.Update(func(v *View) {
		if v.ActiveGroup != groupID {
			return
		}
		v.GroupTasks = tasks
		v.Messages = messages
	})
	return nil
}

// Suspend pauses interval polling, for when the view loses focus.
func (s *Syncer) Suspend() {
	select {
	case s.suspend <- true:
	default:
	}
}

// Resume restarts polling and triggers an immediate refresh.
func (s *Syncer) Resume() {
	select {
	case s.suspend <- false:
	default:
	}
	select {
	case s.poke <- struct{}{}:
	default:
	}
}

// Run polls shared group state until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	suspended := false
	for {
		select {
		case <-ctx.Done():
			return
		case suspended = <-s.suspend:
		case <-s.poke:
			suspended = drainSuspend(s.suspend, suspended)
			if !suspended {
				_ = s.RefreshGroup(ctx)
			}
		case <-ticker.C:
			suspended = drainSuspend(s.suspend, suspended)
			if !suspended {
				_ = s.RefreshGroup(ctx)
			}
		}
	}
}

func drainSuspend(ch chan bool, current bool) bool {
	select {
	case v := <-ch:
		return v
	default:
		return current
	}
}

func (s *Syncer) activeGroup() string {
	return s.state.View().ActiveGroup
}

func removeTask(tasks []domain.Task, taskID string) []domain.Task {
	out := tasks[:0]
	for _, t := range tasks {
		if t.ID != taskID {
			out = append(out, t)
		}
	}
	return out
}

// reorderTasks arranges tasks to follow orderedIDs, appending any task
// the order misses so nothing disappears from the view.
func reorderTasks(tasks []domain.Task, orderedIDs []string) []domain.Task {
	byID := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	out := make([]domain.Task, 0, len(tasks))
	seen := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	for _, t := range tasks {
		if !seen[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
