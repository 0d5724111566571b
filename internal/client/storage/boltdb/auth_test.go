package boltdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/iudanet/gophauth/internal/client/storage"
)

func createTestAuthStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := New(context.Background(), filepath.Join(t.TempDir(), "auth_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func TestStorage_SaveGetDeleteAuth(t *testing.T) {
	ctx := context.Background()
	store := createTestAuthStorage(t)

	now := time.Now()
	auth := &storage.AuthData{
		Email:            "alice@x.com",
		UserID:           "user-id-123",
		AccessToken:      "access-token",
		RefreshToken:     "refresh-cookie",
		AccessExpiresAt:  now.Add(15 * time.Minute).Unix(),
		RefreshExpiresAt: now.Add(7 * 24 * time.Hour).Unix(),
	}

	_, err := store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	require.NoError(t, store.SaveAuth(ctx, auth))

	got, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth, got)

	ok, err := store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// an expired access token alone keeps the session
	auth.AccessExpiresAt = now.Add(-time.Minute).Unix()
	require.NoError(t, store.SaveAuth(ctx, auth))
	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// an expired refresh cookie ends it
	auth.RefreshExpiresAt = now.Add(-time.Minute).Unix()
	require.NoError(t, store.SaveAuth(ctx, auth))
	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.DeleteAuth(ctx))

	_, err = store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrAuthNotFound)

	assert.ErrorIs(t, store.DeleteAuth(ctx), storage.ErrAuthNotFound)

	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_SaveAuthReplaces(t *testing.T) {
	ctx := context.Background()
	store := createTestAuthStorage(t)

	require.NoError(t, store.SaveAuth(ctx, &storage.AuthData{Email: "alice@x.com", RefreshToken: "r1"}))
	require.NoError(t, store.SaveAuth(ctx, &storage.AuthData{Email: "bob@x.com", RefreshToken: "r2"}))

	got, err := store.GetAuth(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", got.Email)
	assert.Equal(t, "r2", got.RefreshToken)
}

func TestStorage_IsAuthenticatedUsesClock(t *testing.T) {
	ctx := context.Background()
	store := createTestAuthStorage(t)

	base := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return base }

	require.NoError(t, store.SaveAuth(ctx, &storage.AuthData{
		RefreshToken:     "r",
		RefreshExpiresAt: base.Add(time.Hour).Unix(),
	}))

	ok, err := store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	ok, err = store.IsAuthenticated(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_CorruptedData(t *testing.T) {
	ctx := context.Background()
	store := createTestAuthStorage(t)

	err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAuth).Put(authKey, []byte("{not json"))
	})
	require.NoError(t, err)

	_, err = store.GetAuth(ctx)
	assert.Error(t, err)

	_, err = store.IsAuthenticated(ctx)
	assert.Error(t, err)
}

func TestStorage_Closed(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.SaveAuth(ctx, &storage.AuthData{}), storage.ErrStorageClosed)
	_, err = store.GetAuth(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	assert.ErrorIs(t, store.DeleteAuth(ctx), storage.ErrStorageClosed)
}
