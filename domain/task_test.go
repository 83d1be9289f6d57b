package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializeOrderAppendsMissingTasks(t *testing.T) {
	byID := map[string]Task{
		"a": {ID: "a", CreatedAt: 1},
		"b": {ID: "b", CreatedAt: 2},
		"c": {ID: "c", CreatedAt: 3},
	}

	got := MaterializeOrder(byID, []string{"c", "a"})

	require.Len(t, got, 3)
	assert.Equal(t, []string{"c", "a", "b"}, TaskIDs(got))
}

func TestMaterializeOrderSkipsStaleAndDuplicateIDs(t *testing.T) {
	byID := map[string]Task{
		"a": {ID: "a", CreatedAt: 1},
	}

	got := MaterializeOrder(byID, []string{"deleted", "a", "a", "gone"})

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestMaterializeOrderSortsOrphansByCreation(t *testing.T) {
	byID := map[string]Task{
		"late":  {ID: "late", CreatedAt: 300},
		"early": {ID: "early", CreatedAt: 100},
		"mid":   {ID: "mid", CreatedAt: 200},
	}

	got := MaterializeOrder(byID, nil)

	assert.Equal(t, []string{"early", "mid", "late"}, TaskIDs(got))
}

func TestNormalizeCounterKeepsCountEqualToLog(t *testing.T) {
	task := Task{
		ID:    "t",
		Kind:  KindCounter,
		Count: 99,
		Log:   []CounterEntry{{ID: "e1", At: 1}, {ID: "e2", At: 2}},
	}

	task.Normalize()

	assert.Equal(t, 2, task.Count)
	assert.False(t, task.Done)
}

func TestNormalizeSimpleClearsCounterFields(t *testing.T) {
	task := Task{ID: "t", Kind: KindSimple, Count: 5, Log: []CounterEntry{{ID: "e"}}}

	task.Normalize()

	assert.Zero(t, task.Count)
	assert.Nil(t, task.Log)
}

func TestNormalizeDefaultsUnknownKindToSimple(t *testing.T) {
	task := Task{ID: "t"}

	task.Normalize()

	assert.Equal(t, KindSimple, task.Kind)
}
