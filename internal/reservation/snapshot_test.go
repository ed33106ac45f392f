package reservation

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

func TestSnapshotCache_InvalidateDuringLoad(t *testing.T) {
	ctx := context.Background()
	session := model.SessionKey{MovieID: 1, HallID: 1, Showtime: "19:30"}

	var loads atomic.Int32
	started, proceed := make(chan struct{}), make(chan struct{})
	current := model.MustSeatSet(1)
	cache := NewSnapshotCache(time.Minute, clock.NewMockClock(t0), func(context.Context, model.SessionKey) (model.SeatSet, error) {
		if loads.Add(1) == 1 {
			close(started)
			<-proceed
			return model.MustSeatSet(1), nil
		}
		return current, nil
	})

	done := make(chan model.SeatSet)
	go func() {
		seats, _, _ := cache.Get(ctx, session)
		done <- seats
	}()

	<-started
	// A commit lands while the first read is still loading.
	current = model.MustSeatSet(1, 2)
	cache.Invalidate(session)
	close(proceed)
	assert.Equal(t, model.MustSeatSet(1), <-done)

	seats, _, err := cache.Get(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, model.MustSeatSet(1, 2), seats, "stale load must not be cached over the invalidation")
	assert.EqualValues(t, 2, loads.Load())
}

func TestSnapshotCache_ServesWithinRefresh(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMockClock(t0)
	session := model.SessionKey{MovieID: 1, HallID: 1, Showtime: "19:30"}

	var loads atomic.Int32
	cache := NewSnapshotCache(5*time.Second, clk, func(context.Context, model.SessionKey) (model.SeatSet, error) {
		loads.Add(1)
		return model.MustSeatSet(4), nil
	})

	_, loaded, err := cache.Get(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, t0, loaded)
	clk.Add(4 * time.Second)
	_, _, _ = cache.Get(ctx, session)
	assert.EqualValues(t, 1, loads.Load())

	clk.Add(time.Second)
	_, _, _ = cache.Get(ctx, session)
	assert.EqualValues(t, 2, loads.Load())

	clk.Add(time.Hour)
	assert.Equal(t, 1, cache.Prune(time.Minute))
}
