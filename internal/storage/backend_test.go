// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/nisa-chat/internal/model"
)

// exerciseBackend checks the contract every backend shares.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	data, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, data, "empty backend reads nil")

	require.NoError(t, b.Write(ctx, []byte(`{"a":1}`)))
	data, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	require.NoError(t, b.Write(ctx, []byte(`{}`)))
	data, err = b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data), "write replaces the whole document")

	store := NewConversationStore(b)
	conv := model.NewConversation()
	conv.AddMessage(model.NewUserMessage("fundos do século XIX"))
	require.NoError(t, store.Save(ctx, conv))

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "fundos do século XIX", got.Messages[1].Content)
}

func TestFileBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	b, err := NewFileBackend(dir, DefaultKey)
	require.NoError(t, err)
	defer b.Close()

	exerciseBackend(t, b)

	assert.Equal(t, filepath.Join(dir, "chatbot_conversations.json"), b.Path())
	_, err = os.Stat(b.Path())
	assert.NoError(t, err)
}

func TestSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nisa.db")
	b, err := NewSQLiteBackend(context.Background(), path, DefaultKey)
	require.NoError(t, err)
	defer b.Close()

	exerciseBackend(t, b)
}

func TestSQLiteBackend_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nisa.db")

	b, err := NewSQLiteBackend(ctx, path, DefaultKey)
	require.NoError(t, err)
	require.NoError(t, b.Write(ctx, []byte("persisted")))
	require.NoError(t, b.Close())

	b, err = NewSQLiteBackend(ctx, path, DefaultKey)
	require.NoError(t, err)
	defer b.Close()
	data, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(data))
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, &MemoryBackend{})
}

// TestRedisBackend needs a live server: NISA_TEST_REDIS_ADDR=localhost:6379.
func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("NISA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NISA_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(ctx).Err())

	key := "nisa_test_" + model.GenerateConversationID()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	b := NewRedisBackend(client, key)
	defer b.Close()
	exerciseBackend(t, b)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(ctx, Options{Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileBackend{}, b)
	b.Close()

	b, err = Open(ctx, Options{Kind: KindSQLite, Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, b)
	b.Close()

	_, err = Open(ctx, Options{Kind: "cassandra", Dir: dir})
	assert.ErrorContains(t, err, "unknown storage backend")
}
