package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"crewboard-api/domain"
)

// GetTasks returns the ordered task list for an owner key. The stored shape
// is detected by key type: a string value is the legacy whole-collection
// blob and is migrated to the id-keyed hash before returning; a hash is read
// together with the order list and materialized through the order sequence.
// An absent key yields an empty list.
func (s *Store) GetTasks(ctx context.Context, ownerKey string) ([]domain.Task, error) {
	shape, err := s.rdb.Type(ctx, tasksKey(ownerKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("detect task shape: %w", err)
	}
	switch shape {
	case "none":
		return []domain.Task{}, nil
	case "string":
		return s.migrateLegacyTasks(ctx, ownerKey)
	case "hash":
		return s.readTasks(ctx, ownerKey)
	default:
		return nil, fmt.Errorf("unexpected shape %q for tasks of %s", shape, ownerKey)
	}
}

func (s *Store) readTasks(ctx context.Context, ownerKey string) ([]domain.Task, error) {
	var mapCmd *redis.MapStringStringCmd
	var orderCmd *redis.StringCmd
	_, err := s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		mapCmd = pipe.HGetAll(ctx, tasksKey(ownerKey))
		orderCmd = pipe.Get(ctx, taskOrderKey(ownerKey))
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("read tasks of %s: %w", ownerKey, err)
	}

	raw := mapCmd.Val()
	byID := make(map[string]domain.Task, len(raw))
	for id, data := range raw {
		var t domain.Task
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("parse task %s of %s: %w", id, ownerKey, err)
		}
		t.ID = id
		t.Normalize()
		byID[id] = t
	}

	var order []string
	if data, err := orderCmd.Result(); err == nil {
		// A corrupt order value degrades to "no order"; the tasks themselves
		// are still surfaced through the orphan path.
		_ = json.Unmarshal([]byte(data), &order)
	}
	return domain.MaterializeOrder(byID, order), nil
}

// migrateLegacyTasks parses the legacy blob, rewrites the collection into
// the id-keyed hash plus an order list derived from the blob's array order,
// and deletes the blob, all in one transactional pipeline. After this the
// stored shape is the hash, so a second read never re-triggers migration.
func (s *Store) migrateLegacyTasks(ctx context.Context, ownerKey string) ([]domain.Task, error) {
	raw, err := s.rdb.Get(ctx, tasksKey(ownerKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("read legacy tasks of %s: %w", ownerKey, err)
	}
	var tasks []domain.Task
	if err := json.Unmarshal([]byte(raw), &tasks); err != nil {
		return nil, fmt.Errorf("parse legacy tasks of %s: %w", ownerKey, err)
	}

	order := make([]string, 0, len(tasks))
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
		}
		tasks[i].Normalize()
		order = append(order, tasks[i].ID)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tasksKey(ownerKey))
		for i := range tasks {
			data, merr := json.Marshal(tasks[i])
			if merr != nil {
				return merr
			}
			pipe.HSet(ctx, tasksKey(ownerKey), tasks[i].ID, data)
		}
		orderData, merr := json.Marshal(order)
		if merr != nil {
			return merr
		}
		pipe.Set(ctx, taskOrderKey(ownerKey), orderData, 0)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("migrate tasks of %s: %w", ownerKey, err)
	}
	return tasks, nil
}

// SaveTasks reconciles the submitted full list against storage: every
// submitted task is written, and stored tasks missing from the submission
// are deleted. Reconciliation is last-write-wins over the whole list, so a
// stale snapshot can drop another client's concurrent insert; per-task
// delete and SaveOrder avoid that.
//
// An empty submission is ignored unless forceEmpty is set, so a client that
// failed to load the collection cannot wipe it with an auto-save.
func (s *Store) SaveTasks(ctx context.Context, ownerKey string, tasks []domain.Task, forceEmpty bool) error {
	if len(tasks) == 0 && !forceEmpty {
		return nil
	}

	shape, err := s.rdb.Type(ctx, tasksKey(ownerKey)).Result()
	if err != nil {
		return fmt.Errorf("detect task shape: %w", err)
	}

	submitted := make(map[string]struct{}, len(tasks))
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = uuid.NewString()
		}
		tasks[i].Normalize()
		submitted[tasks[i].ID] = struct{}{}
	}

	var stale []string
	if shape == "hash" {
		stored, err := s.rdb.HKeys(ctx, tasksKey(ownerKey)).Result()
		if err != nil {
			return fmt.Errorf("list stored tasks: %w", err)
		}
		for _, id := range stored {
			if _, ok := submitted[id]; !ok {
				stale = append(stale, id)
			}
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if shape == "string" {
			// No merging of shapes: the legacy blob is dropped outright.
			pipe.Del(ctx, tasksKey(ownerKey))
		}
		if len(tasks) == 0 {
			pipe.Del(ctx, tasksKey(ownerKey), taskOrderKey(ownerKey))
			return nil
		}
		for i := range tasks {
			data, merr := json.Marshal(tasks[i])
			if merr != nil {
				return merr
			}
			pipe.HSet(ctx, tasksKey(ownerKey), tasks[i].ID, data)
		}
		if len(stale) > 0 {
			pipe.HDel(ctx, tasksKey(ownerKey), stale...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save tasks of %s: %w", ownerKey, err)
	}
	return nil
}

// SaveOrder overwrites only the display-order list. Task bodies are not
// touched, which keeps drag-reorder cheap and independent of SaveTasks.
func (s *Store) SaveOrder(ctx context.Context, ownerKey string, orderedIDs []string) error {
	data, err := json.Marshal(orderedIDs)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	if err := s.rdb.Set(ctx, taskOrderKey(ownerKey), data, 0).Err(); err != nil {
		return fmt.Errorf("save order of %s: %w", ownerKey, err)
	}
	return nil
}

// DeleteTask removes one task from the mapping. The order list is left
// alone; stale ids in it are filtered at read time.
func (s *Store) DeleteTask(ctx context.Context, ownerKey, taskID string) error {
	if err := s.rdb.HDel(ctx, tasksKey(ownerKey), taskID).Err(); err != nil {
		return fmt.Errorf("delete task %s of %s: %w", taskID, ownerKey, err)
	}
	return nil
}
