package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/voiceloop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewState(sessionID, domain.VariantOrdering)
		state.Location = domain.AtConfirm
		state.Context = state.Context.
			Append(domain.UserMessage("a burger please")).
			Append(domain.AssistantMessage("You ordered 1 burger and undefined.")).
			SetLastResult("You ordered 1 burger and undefined.").
			AddPendingItem(domain.PendingItem{Field: "food", Value: "1 burger"}).
			IncrementSilence()

		err := store.Save(ctx, sessionID, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, state.Location, loaded.Location)
		assert.Equal(t, state.Variant, loaded.Variant)
		assert.Equal(t, state.Context.History, loaded.Context.History)
		assert.Equal(t, state.Context.PendingItems, loaded.Context.PendingItems)
		assert.Equal(t, 1, loaded.Context.SilenceCount)
		assert.Equal(t, "You ordered 1 burger and undefined.", loaded.Context.LastResultText())
	})

	t.Run("Load Isolation", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Context.History[0].Content = "mutated"

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, "a burger please", again.Context.History[0].Content)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewState(sessionID, domain.VariantChat))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewState(id1, domain.VariantChat))
		_ = store.Save(ctx, id2, domain.NewState(id2, domain.VariantChat))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
