// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/nisa-chat/internal/model"
	"github.com/jeranaias/nisa-chat/internal/storage"
)

// failingBackend rejects every write.
type failingBackend struct{ storage.MemoryBackend }

func (*failingBackend) Write(context.Context, []byte) error { return errors.New("disk full") }

func newStore() *storage.ConversationStore {
	return storage.NewConversationStore(&storage.MemoryBackend{})
}

func TestNew_FreshConversation(t *testing.T) {
	s := New(nil)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, model.WelcomeID, msgs[0].ID)
	assert.Equal(t, model.WelcomeText, msgs[0].Content)
	assert.Empty(t, s.Input())
	assert.Equal(t, model.ModelFast, s.SelectedModel())
	assert.Empty(t, s.SuggestedLinks())
	assert.True(t, strings.HasPrefix(s.ID(), "conv_"))
	assert.Equal(t, model.DefaultTitle, s.Title())
}

func TestNew_DefaultModelOption(t *testing.T) {
	s := New(nil, WithDefaultModel(model.ModelAdvanced))
	assert.Equal(t, model.ModelAdvanced, s.SelectedModel())

	s.NewConversation()
	assert.Equal(t, model.ModelAdvanced, s.SelectedModel())
}

func TestAutoSave_OnlyAfterUserMessage(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	s := New(store)

	s.SetInput("rascunho")
	s.SetSelectedModel(model.ModelAdvanced)
	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "welcome-only conversation is never persisted")

	s.AppendMessage(model.NewUserMessage("fundos do século XIX"))
	saved, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 2)
	assert.Equal(t, "rascunho", saved.Input)
	assert.Equal(t, model.ModelAdvanced, saved.SelectedModel)
	assert.Equal(t, "fundos do século XIX", saved.Title)

	s.SetInput("")
	s.AppendMessage(model.NewAssistantMessage("Encontrei dois fundos."))
	s.SetSuggestedLinks([]model.Link{{URL: "https://sian/f1"}})

	saved, err = store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Len(t, saved.Messages, 3)
	assert.Empty(t, saved.Input)
	assert.Equal(t, []model.Link{{URL: "https://sian/f1"}}, saved.SuggestedLinks)
	assert.NoError(t, s.SaveErr())
}

func TestAutoSave_TitleTruncated(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	s := New(store)

	s.AppendMessage(model.NewUserMessage(strings.Repeat("é", 80)))
	saved, err := store.Get(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", model.TitleMaxRunes), saved.Title)
}

func TestAutoSave_ErrorIsRecorded(t *testing.T) {
	s := New(storage.NewConversationStore(&failingBackend{}))
	s.AppendMessage(model.NewUserMessage("fundos"))

	assert.ErrorContains(t, s.SaveErr(), "disk full")
	assert.Len(t, s.Messages(), 2, "in-memory state survives a failed save")
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	first := New(store)
	first.AppendMessage(model.NewUserMessage("primeira"))
	first.AppendMessage(model.NewAssistantMessage("resposta"))
	first.SetSelectedModel(model.ModelAdvanced)
	id := first.ID()

	s := New(store)
	require.NoError(t, s.Load(ctx, id))
	assert.Equal(t, id, s.ID())
	assert.Len(t, s.Messages(), 3)
	assert.Equal(t, model.ModelAdvanced, s.SelectedModel())
	assert.Len(t, model.BuildHistory(s.Messages()), 1)
}

func TestLoad_MissingKeepsActive(t *testing.T) {
	s := New(newStore())
	s.SetInput("rascunho")
	before := s.ID()

	err := s.Load(context.Background(), "conv_missing")
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)
	assert.Equal(t, before, s.ID())
	assert.Equal(t, "rascunho", s.Input())
}

func TestNewConversation_KeepsPrevious(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	s := New(store)
	s.AppendMessage(model.NewUserMessage("primeira"))
	old := s.ID()

	s.NewConversation()
	assert.NotEqual(t, old, s.ID())
	assert.Len(t, s.Messages(), 1)

	_, err := store.Get(ctx, old)
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	s := New(store)
	s.AppendMessage(model.NewUserMessage("para apagar"))
	id := s.ID()

	require.NoError(t, s.Delete(ctx, id))
	assert.NotEqual(t, id, s.ID(), "deleting the active conversation starts a new one")
	_, err := store.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrConversationNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "conv_other"), storage.ErrConversationNotFound)
}

func TestDelete_UnsavedActive(t *testing.T) {
	s := New(newStore())
	id := s.ID()
	require.NoError(t, s.Delete(context.Background(), id))
	assert.NotEqual(t, id, s.ID())
}

func TestNext_Cycles(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	var ids []string
	for _, q := range []string{"a", "b", "c"} {
		s := New(store)
		s.AppendMessage(model.NewUserMessage(q))
		ids = append(ids, s.ID())
	}
	metas, err := store.List(ctx)
	require.NoError(t, err)

	s := New(store)
	first, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, metas[0].ID, first, "unsaved conversation starts at the newest")

	require.NoError(t, s.Load(ctx, metas[len(metas)-1].ID))
	wrapped, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, metas[0].ID, wrapped)
	assert.ElementsMatch(t, ids, []string{metas[0].ID, metas[1].ID, metas[2].ID})
}

func TestNext_EmptyStore(t *testing.T) {
	id, err := New(newStore()).Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestToggleModel(t *testing.T) {
	s := New(nil)
	assert.Equal(t, model.ModelAdvanced, s.ToggleModel())
	assert.Equal(t, model.ModelFast, s.ToggleModel())
}

func TestOnChange(t *testing.T) {
	var n atomic.Int32
	s := New(nil, WithOnChange(func() { n.Add(1) }))

	s.SetInput("x")
	s.AppendMessage(model.NewUserMessage("x"))
	s.SetSuggestedLinks(nil)
	s.NewConversation()
	assert.Equal(t, int32(4), n.Load())
}

func TestSnapshot_IsCopy(t *testing.T) {
	s := New(nil)
	s.AppendMessage(model.NewUserMessage("original"))

	snap := s.Snapshot()
	snap.Messages[1].Content = "changed"
	assert.Equal(t, "original", s.Messages()[1].Content)
}
