package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"testing"

	"github.com/aretw0/codeflow/pkg/adapters/memory"
	"github.com/aretw0/codeflow/pkg/domain"
	"github.com/aretw0/codeflow/pkg/persistence/middleware"
	"github.com/aretw0/codeflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, middleware.KeySize)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secretRecording(id string) *domain.Recording {
	return domain.NewRecording(id, "let password = 'hunter2';", nil, domain.TraceResult{
		Status: domain.StatusSuccess,
		Events: []domain.TraceEvent{{
			Line:      1,
			Kind:      domain.EventAssign,
			Variables: domain.VariableSnapshot{"password": "hunter2"},
		}},
	})
}

func TestEncryptionMiddleware_Contract(t *testing.T) {
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	ports.RunRecordingStoreContract(t, mw(memory.NewStore()))
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	secure := mw(underlying)

	rec := secretRecording("r1")
	rec.Cursor = 0
	require.NoError(t, secure.Save(ctx, rec))

	stored, err := underlying.Load(ctx, "r1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)
	assert.Empty(t, stored.Source)
	assert.Empty(t, stored.Result.Events)
	assert.Equal(t, 0, stored.Cursor)
	assert.Equal(t, domain.StatusSuccess, stored.Result.Status)
	assert.NotContains(t, stored.Sealed, "hunter2")

	loaded, err := secure.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, rec.Source, loaded.Source)
	assert.Empty(t, loaded.Sealed)
	require.Len(t, loaded.Result.Events, 1)
	assert.Equal(t, "hunter2", loaded.Result.Events[0].Variables["password"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	ctx := context.Background()
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)

	oldMw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})
	require.NoError(t, err)
	require.NoError(t, oldMw(underlying).Save(ctx, secretRecording("r1")))

	rotated, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})
	require.NoError(t, err)
	loaded, err := rotated(underlying).Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", loaded.ID)

	unaware, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: newKey})
	require.NoError(t, err)
	_, err = unaware(underlying).Load(ctx, "r1")
	assert.Error(t, err)
}

func TestEncryptionMiddleware_Errors(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)

	ctx := context.Background()
	underlying := memory.NewStore()
	require.NoError(t, underlying.Save(ctx, secretRecording("plain")))
	mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)
	_, err = mw(underlying).Load(ctx, "plain")
	assert.ErrorIs(t, err, middleware.ErrMissingEnvelope)

	_, err = mw(underlying).Load(ctx, "absent")
	assert.ErrorIs(t, err, domain.ErrRecordingNotFound)
}

func TestDecodeKey(t *testing.T) {
	key := generateKey(t)
	got, err := middleware.DecodeKey(base64.StdEncoding.EncodeToString(key))
	require.NoError(t, err)
	assert.Equal(t, key, got)

	_, err = middleware.DecodeKey(base64.StdEncoding.EncodeToString([]byte("too short")))
	assert.Error(t, err)
	_, err = middleware.DecodeKey("not base64!")
	assert.Error(t, err)
}
