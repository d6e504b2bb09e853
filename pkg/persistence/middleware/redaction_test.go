package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/codeflow/pkg/adapters/memory"
	"github.com/aretw0/codeflow/pkg/persistence/middleware"
	"github.com/aretw0/codeflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactionMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewRedactionMiddleware([]string{"(?i)password"})
	require.NoError(t, err)
	ports.RunRecordingStoreContract(t, mw(memory.NewStore()))
}

func TestRedactionMiddleware_Masks(t *testing.T) {
	ctx := context.Background()
	mw, err := middleware.NewRedactionMiddleware([]string{"(?i)password", "^token$"})
	require.NoError(t, err)
	store := mw(memory.NewStore())

	rec := secretRecording("r1")
	rec.Result.Events[0].Variables["user"] = map[string]any{"name": "ana", "token": "abc"}
	rec.Result.Events[0].Variables["tokens"] = 3
	require.NoError(t, store.Save(ctx, rec))

	assert.Equal(t, "hunter2", rec.Result.Events[0].Variables["password"], "the caller's recording is untouched")

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	vars := loaded.Result.Events[0].Variables
	assert.Equal(t, middleware.Mask, vars["password"])
	assert.Equal(t, map[string]any{"name": "ana", "token": middleware.Mask}, vars["user"])
	assert.Equal(t, 3, vars["tokens"])
}

func TestRedactionMiddleware_InvalidPattern(t *testing.T) {
	_, err := middleware.NewRedactionMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	redact, err := middleware.NewRedactionMiddleware([]string{"password"})
	require.NoError(t, err)
	seal, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, redact, seal)
	require.NoError(t, store.Save(ctx, secretRecording("r1")))

	stored, err := underlying.Load(ctx, "r1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)

	loaded, err := store.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Result.Events[0].Variables["password"])
}
