package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractRecording(id string) *domain.Recording {
	result := domain.TraceResult{
		Status:       domain.StatusSuccess,
		Algorithm:    domain.BubbleSort,
		TrackedArray: "arr",
		Output:       "[1,3,5,8]\n",
		Events: []domain.TraceEvent{
			{Sequence: 0, Line: 1, Kind: domain.EventLine, Variables: domain.VariableSnapshot{}},
			{Sequence: 1, Line: 1, Kind: domain.EventState, Variables: domain.VariableSnapshot{"arr": []any{5, 3}}, Array: []any{5, 3}, Tag: domain.InitialStateTag},
			{Sequence: 2, Line: 3, Kind: domain.EventCall, FunctionName: "sort", Variables: domain.VariableSnapshot{"n": 2}},
		},
	}
	return domain.NewRecording(id, "let arr = [5, 3];", []int{3}, result)
}

// RunRecordingStoreContract runs a suite of tests to verify that a RecordingStore
// implementation adheres to the defined interface contract.
func RunRecordingStoreContract(t *testing.T, store RecordingStore) {
	ctx := context.Background()
	id := "contract-test-recording-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		rec := contractRecording(id)
		rec.Cursor = 1

		err := store.Save(ctx, rec)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, id, loaded.ID)
		assert.Equal(t, 1, loaded.Cursor)
		assert.Equal(t, rec.Source, loaded.Source)
		assert.Equal(t, []int{3}, loaded.Breakpoints)
		assert.Equal(t, domain.StatusSuccess, loaded.Result.Status)
		assert.Equal(t, domain.BubbleSort, loaded.Result.Algorithm)
		require.Len(t, loaded.Result.Events, 3)
		assert.Equal(t, domain.EventCall, loaded.Result.Events[2].Kind)
		assert.Equal(t, "sort", loaded.Result.Events[2].FunctionName)
		assert.Equal(t, domain.InitialStateTag, loaded.Result.Events[1].Tag)
		// JSON backed stores turn numbers into float64; only check the shape.
		assert.Len(t, loaded.Result.Events[1].Array, 2)
	})

	t.Run("Save Overwrites Cursor", func(t *testing.T) {
		rec, err := store.Load(ctx, id)
		require.NoError(t, err)
		rec.Cursor = 2
		require.NoError(t, store.Save(ctx, rec))

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.Cursor)
	})

	t.Run("Load Returns Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, id)
		require.NoError(t, err)
		loaded.Cursor = 99
		loaded.Result.Events[0].Line = 42

		again, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, 99, again.Cursor)
		assert.Equal(t, 1, again.Result.Events[0].Line)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+id)
		assert.ErrorIs(t, err, domain.ErrRecordingNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Delete(ctx, id)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrRecordingNotFound, "Load after Delete should return ErrRecordingNotFound")

		assert.NoError(t, store.Delete(ctx, id), "Deleting twice is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := id + "-1"
		id2 := id + "-2"
		require.NoError(t, store.Save(ctx, contractRecording(id1)))
		require.NoError(t, store.Save(ctx, contractRecording(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
