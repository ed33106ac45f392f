package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

func (s *MemoryStore) tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func TestMemoryStore_PrunesIdleSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	busy := model.SessionKey{MovieID: 1, HallID: 1, Showtime: "19:30"}
	done := model.SessionKey{MovieID: 1, HallID: 1, Showtime: "22:00"}

	require.NoError(t, store.Reserve(ctx, model.Hold{ID: "h1", Session: busy, Seats: model.MustSeatSet(1), ExpiresAt: t0.Add(time.Hour)}))
	require.NoError(t, store.Reserve(ctx, model.Hold{ID: "h2", Session: done, Seats: model.MustSeatSet(1), ExpiresAt: t0.Add(time.Hour)}))
	_, released, err := store.Release(ctx, "h2")
	require.NoError(t, err)
	require.True(t, released)
	assert.Equal(t, 2, store.tracked())

	_, err = store.ExpireDue(ctx, t0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, store.tracked(), "released session is dropped")

	occ, err := store.Occupied(ctx, busy)
	require.NoError(t, err)
	assert.Equal(t, model.MustSeatSet(1), occ)

	// A pruned session is recreated on the next reservation.
	require.NoError(t, store.Reserve(ctx, model.Hold{ID: "h3", Session: done, Seats: model.MustSeatSet(2), ExpiresAt: t0.Add(time.Hour)}))
	occ, err = store.Occupied(ctx, done)
	require.NoError(t, err)
	assert.Equal(t, model.MustSeatSet(2), occ)
}

func TestMemoryStore_KeepsSessionUntilTombstonesAge(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	session := model.SessionKey{MovieID: 2, HallID: 1, Showtime: "19:30"}
	require.NoError(t, store.Reserve(ctx, model.Hold{ID: "h1", Session: session, Seats: model.MustSeatSet(5), ExpiresAt: t0}))

	expired, err := store.ExpireDue(ctx, t0, 0)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, 1, store.tracked(), "tombstone keeps the session")

	_, err = store.ExpireDue(ctx, t0.Add(time.Minute), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, store.tracked())
	_, err = store.Finalize(ctx, "h1", t0.Add(time.Minute))
	assert.Error(t, err)
}
