package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskguard/analyzer/internal/model"
)

func TestMigrateLegacyThreadsNoPrefix(t *testing.T) {
	n, err := MigrateLegacyThreads(context.Background(), NewMemoryBackend(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMigrateLegacyThreadsMigratesUnseenOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryBackend()

	thread := model.ThreadRecord{ThreadID: "legacy-1", ClientName: "Acme", INN: "7707083893", UpdatedAt: time.Now()}
	payload, err := json.Marshal(thread)
	require.NoError(t, err)

	require.NoError(t, m.SetCache(ctx, model.CacheEntry{
		Key:      "legacy:thread:legacy-1",
		Value:    payload,
		TTLEpoch: time.Now().Add(time.Hour).Unix(),
	}))
	require.NoError(t, m.SetCache(ctx, model.CacheEntry{
		Key:      "other:unrelated",
		Value:    []byte(`{}`),
		TTLEpoch: time.Now().Add(time.Hour).Unix(),
	}))

	migrated, err := MigrateLegacyThreads(ctx, m, "legacy:", []string{"legacy:thread:legacy-1", "other:unrelated"})
	require.NoError(t, err)
	assert.Equal(t, 1, migrated)

	got, err := m.GetThread(ctx, "legacy-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.ClientName)

	again, err := MigrateLegacyThreads(ctx, m, "legacy:", []string{"legacy:thread:legacy-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, again, "re-running migration should be a no-op")
}
