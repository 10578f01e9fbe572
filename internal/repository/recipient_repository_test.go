package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientRepository(t *testing.T) {
	tdb := SetupTestDB(t)
	repo := NewRecipientRepository(tdb.DB)
	attempts := NewAttemptRepository(tdb.DB)
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	entries := seedLedger(t, tdb, 7,
		model.DeliveryStatusPending, model.DeliveryStatusPending, model.DeliveryStatusPending)
	for _, e := range entries {
		assert.NotZero(t, e.ID)
	}

	t.Run("mark result", func(t *testing.T) {
		ok := &model.DeliveryAttempt{MessageID: 7, EntryID: entries[0].ID, Channel: model.ChannelEmail, Delivered: true, AttemptedAt: at}
		bad := &model.DeliveryAttempt{MessageID: 7, EntryID: entries[1].ID, Channel: model.ChannelEmail, Error: "mailbox full", AttemptedAt: at}
		require.NoError(t, repo.MarkResult(ctx, ok))
		require.NoError(t, repo.MarkResult(ctx, bad))

		assert.ErrorIs(t, repo.MarkResult(ctx, ok), ErrNotPending)

		pending, err := repo.ListPending(ctx, 7)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, entries[2].ID, pending[0].ID)

		all, err := repo.List(ctx, 7)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, model.DeliveryStatusSent, all[0].Status)
		require.NotNil(t, all[0].SentAt)
		assert.Equal(t, model.DeliveryStatusFailed, all[1].Status)
		assert.Equal(t, "mailbox full", all[1].Error)
		assert.Nil(t, all[1].SentAt)

		stats, err := repo.Counts(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, model.DeliveryStats{Total: 3, Sent: 1, Failed: 1, Pending: 1}, *stats)
	})

	t.Run("attempt history", func(t *testing.T) {
		created, err := attempts.Create(ctx, &model.DeliveryAttempt{
			MessageID:   7,
			EntryID:     entries[2].ID,
			Channel:     model.ChannelSMS,
			Simulated:   true,
			Delivered:   true,
			Segments:    2,
			AttemptedAt: at,
		})
		require.NoError(t, err)
		assert.NotZero(t, created.ID)

		history, err := attempts.ListByEntry(ctx, entries[2].ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Simulated)
		assert.Equal(t, 2, history[0].Segments)
	})

	t.Run("reset for next occurrence", func(t *testing.T) {
		n, err := repo.ResetForOccurrence(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		all, err := repo.List(ctx, 7)
		require.NoError(t, err)
		for _, e := range all {
			assert.Equal(t, model.DeliveryStatusPending, e.Status)
			assert.Nil(t, e.SentAt)
			assert.Empty(t, e.Error)
		}
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		assert.NoError(t, repo.CreateBatch(ctx, nil))
	})
}

func TestWorkerRunRepository(t *testing.T) {
	tdb := SetupTestDB(t)
	repo := NewWorkerRunRepository(tdb.DB)
	ctx := context.Background()
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"run-a", "run-b"} {
		require.NoError(t, repo.Create(ctx, &model.WorkerRun{
			ID:         id,
			StartedAt:  start.Add(time.Duration(i) * time.Minute),
			FinishedAt: start.Add(time.Duration(i)*time.Minute + time.Second),
			Claimed:    i + 1,
		}))
	}

	runs, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, 2, runs[0].Claimed)
}
