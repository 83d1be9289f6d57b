package domain

import "sort"

// Kind distinguishes the two task variants. It is fixed at creation.
type Kind string

const (
	KindSimple  Kind = "simple"
	KindCounter Kind = "counter"
)

// CounterEntry is one increment event on a counter task.
type CounterEntry struct {
	ID string `json:"id"`
	At int64  `json:"at"`
}

// Task represents a single board item: a checklist entry or a counter.
type Task struct {
	ID          string `json:"id"`
	Kind        Kind   `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"createdAt"`

	// simple kind
	Done   bool  `json:"done,omitempty"`
	DoneAt int64 `json:"doneAt,omitempty"`

	// counter kind
	Count int            `json:"count,omitempty"`
	Log   []CounterEntry `json:"log,omitempty"`
}

// Normalize repairs fields so the task satisfies its kind's invariants:
// an unset kind defaults to simple, counter tasks keep count == len(log),
// and fields of the other kind are cleared.
func (t *Task) Normalize() {
	switch t.Kind {
	case KindCounter:
		t.Done = false
		t.DoneAt = 0
		t.Count = len(t.Log)
	case KindSimple:
		t.Count = 0
		t.Log = nil
		if !t.Done {
			t.DoneAt = 0
		}
	default:
		t.Kind = KindSimple
		t.Count = 0
		t.Log = nil
	}
}

// MaterializeOrder builds the display list for a collection: ids from the
// order sequence that still resolve to a task, in order, followed by tasks
// missing from the sequence sorted by creation time ascending. Stale order
// ids are skipped, and no task is ever dropped.
func MaterializeOrder(byID map[string]Task, order []string) []Task {
	out := make([]Task, 0, len(byID))
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if t, ok := byID[id]; ok {
			out = append(out, t)
		}
	}
	orphans := make([]Task, 0)
	for id, t := range byID {
		if _, ok := seen[id]; !ok {
			orphans = append(orphans, t)
		}
	}
	sort.Slice(orphans, func(i, j int) bool {
		if orphans[i].CreatedAt != orphans[j].CreatedAt {
			return orphans[i].CreatedAt < orphans[j].CreatedAt
		}
		return orphans[i].ID < orphans[j].ID
	})
	return append(out, orphans...)
}

// TaskIDs returns the ids of tasks in list order.
func TaskIDs(tasks []Task) []string {
	ids := make([]string, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}
	return ids
}
