package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRepository_DueAndClaim(t *testing.T) {
	tdb := SetupTestDB(t)
	repo := NewScheduleRepository(tdb.DB)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	due, err := repo.Create(ctx, &model.ScheduleEntry{
		MessageID:     1,
		ScheduledTime: now.Add(-time.Hour),
		NextRun:       now.Add(-time.Hour),
	})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &model.ScheduleEntry{
		MessageID:     2,
		ScheduledTime: now.Add(time.Hour),
		NextRun:       now.Add(time.Hour),
	})
	require.NoError(t, err)

	t.Run("only past entries are due", func(t *testing.T) {
		entries, err := repo.Due(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, due.ID, entries[0].ID)
		assert.Equal(t, model.RecurrenceNone, entries[0].Recurrence)
	})

	t.Run("second claim loses", func(t *testing.T) {
		require.NoError(t, repo.Claim(ctx, due.ID, "run-1", now))
		assert.ErrorIs(t, repo.Claim(ctx, due.ID, "run-2", now), ErrClaimLost)

		got, err := repo.Get(ctx, due.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ScheduleStatusProcessing, got.Status)
		require.NotNil(t, got.ClaimedAt)
		assert.Equal(t, "run-1", got.ClaimedBy)

		entries, err := repo.Due(ctx, now, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("future entry cannot be claimed", func(t *testing.T) {
		entries, err := repo.ListByMessage(ctx, 2)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.ErrorIs(t, repo.Claim(ctx, entries[0].ID, "run-1", now), ErrClaimLost)
	})
}

func TestScheduleRepository_CompleteAndRearm(t *testing.T) {
	tdb := SetupTestDB(t)
	repo := NewScheduleRepository(tdb.DB)
	ctx := context.Background()
	due := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	now := due.Add(5 * time.Minute)

	create := func(rec model.Recurrence) *model.ScheduleEntry {
		s, err := repo.Create(ctx, &model.ScheduleEntry{
			MessageID:     1,
			ScheduledTime: due,
			NextRun:       due,
			Recurrence:    rec,
		})
		require.NoError(t, err)
		require.NoError(t, repo.Claim(ctx, s.ID, "run-1", now))
		return s
	}

	t.Run("complete", func(t *testing.T) {
		s := create(model.RecurrenceNone)
		require.NoError(t, repo.Complete(ctx, s.ID, "run-1", due))

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ScheduleStatusCompleted, got.Status)
		assert.Equal(t, 1, got.RunCount)
		assert.Nil(t, got.ClaimedAt)
		assert.Empty(t, got.ClaimedBy)
		require.NotNil(t, got.LastRun)
		assert.True(t, due.Equal(*got.LastRun))
	})

	t.Run("rearm", func(t *testing.T) {
		s := create(model.RecurrenceDaily)
		next := due.AddDate(0, 0, 1)
		require.NoError(t, repo.Rearm(ctx, s.ID, "run-1", due, next))

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ScheduleStatusPending, got.Status)
		assert.True(t, next.Equal(got.NextRun))
		assert.True(t, got.NextRun.After(*got.LastRun))
		assert.Equal(t, 1, got.RunCount)
	})

	t.Run("rearm rejects a next run not after last run", func(t *testing.T) {
		s := create(model.RecurrenceDaily)
		assert.Error(t, repo.Rearm(ctx, s.ID, "run-1", due, due))
	})

	t.Run("finishing an unclaimed entry fails", func(t *testing.T) {
		s, err := repo.Create(ctx, &model.ScheduleEntry{MessageID: 1, ScheduledTime: due, NextRun: due})
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Complete(ctx, s.ID, "run-1", due), ErrClaimLost)
	})

	t.Run("only the holder can finish", func(t *testing.T) {
		s := create(model.RecurrenceDaily)
		assert.ErrorIs(t, repo.Complete(ctx, s.ID, "run-2", due), ErrClaimLost)
		assert.ErrorIs(t, repo.Rearm(ctx, s.ID, "run-2", due, due.AddDate(0, 0, 1)), ErrClaimLost)

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ScheduleStatusProcessing, got.Status)
	})
}

func TestScheduleRepository_RecoverStale(t *testing.T) {
	tdb := SetupTestDB(t)
	repo := NewScheduleRepository(tdb.DB)
	ctx := context.Background()
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	stale, err := repo.Create(ctx, &model.ScheduleEntry{MessageID: 1, ScheduledTime: now, NextRun: now.Add(-2 * time.Hour)})
	require.NoError(t, err)
	fresh, err := repo.Create(ctx, &model.ScheduleEntry{MessageID: 2, ScheduledTime: now, NextRun: now.Add(-time.Minute)})
	require.NoError(t, err)

	require.NoError(t, repo.Claim(ctx, stale.ID, "crashed", now.Add(-time.Hour)))
	require.NoError(t, repo.Claim(ctx, fresh.ID, "live", now))

	n, err := repo.RecoverStale(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusPending, got.Status)
	assert.Nil(t, got.ClaimedAt)
	assert.Empty(t, got.ClaimedBy)

	got, err = repo.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ScheduleStatusProcessing, got.Status)
}

func TestScheduleRepository_Heartbeat(t *testing.T) {
	tdb := SetupTestDB(t)
	repo := NewScheduleRepository(tdb.DB)
	ctx := context.Background()
	claimedAt := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	s, err := repo.Create(ctx, &model.ScheduleEntry{MessageID: 1, ScheduledTime: claimedAt, NextRun: claimedAt})
	require.NoError(t, err)
	require.NoError(t, repo.Claim(ctx, s.ID, "run-1", claimedAt))

	// a heartbeat 40 minutes in keeps a 30 minute stale window from firing
	beat := claimedAt.Add(40 * time.Minute)
	require.NoError(t, repo.Heartbeat(ctx, s.ID, "run-1", beat))
	n, err := repo.RecoverStale(ctx, beat.Add(10*time.Minute).Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := repo.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ClaimedAt)
	assert.True(t, beat.Equal(*got.ClaimedAt))

	assert.ErrorIs(t, repo.Heartbeat(ctx, s.ID, "run-2", beat), ErrClaimLost)

	// once recovered, the old holder's heartbeat reports the loss
	n, err = repo.RecoverStale(ctx, beat.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.ErrorIs(t, repo.Heartbeat(ctx, s.ID, "run-1", beat.Add(2*time.Minute)), ErrClaimLost)
}
