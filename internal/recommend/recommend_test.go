package recommend

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// offset is the float form of the ranking metric.
func offset(start, k int) float64 {
	return math.Abs(float64(start) + float64(k-1)/2 - 3.5)
}

func TestRecommend_EmptyHall(t *testing.T) {
	for k := 1; k <= model.RowWidth; k++ {
		b, found, err := Recommend(k, 0)
		require.NoError(t, err)
		require.True(t, found, "k=%d", k)

		assert.Equal(t, model.RowPreference[0], b.Row)
		assert.Equal(t, k, b.Seats().Len())

		best := math.Inf(1)
		for s := 0; s+k <= model.RowWidth; s++ {
			best = math.Min(best, offset(s, k))
		}
		assert.Equal(t, best, offset(b.Start, k), "k=%d start=%d", k, b.Start)
	}
}

func TestRecommend_FourSeatsCentred(t *testing.T) {
	b, found, err := Recommend(4, 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 4, b.Row)
	assert.Equal(t, 0.0, offset(b.Start, 4))
	assert.Equal(t, model.MustSeatSet(34, 35, 36, 37), b.Seats())
}

func TestRecommend_TieGoesToSmallerStart(t *testing.T) {
	// k=3 in an empty row: starts 2 and 3 are both 0.5 from centre.
	b, found, err := Recommend(3, 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, b.Start)
}

func TestRecommend_FallsBackToNextPreferredRow(t *testing.T) {
	occupied := model.RowMask(4)
	b, found, err := Recommend(2, occupied)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, b.Row)

	occupied = occupied.Union(model.RowMask(3)).With(model.SeatID(5*model.RowWidth + 3))
	b, found, err = Recommend(2, occupied)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, b.Row)
	assert.True(t, b.Seats().Intersect(occupied).IsEmpty())
}

func TestRecommend_FirstRowWinsEvenIfOffCentre(t *testing.T) {
	// Row 4 only has its two left-most seats free; row 3 is empty. Row 4
	// still wins because rows are never compared once one yields a block.
	occupied := model.RowMask(4).Without(model.MustSeatSet(32, 33))
	b, found, err := Recommend(2, occupied)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 4, b.Row)
	assert.Equal(t, 0, b.Start)
}

func TestRecommend_None(t *testing.T) {
	_, found, err := Recommend(9, 0)
	require.NoError(t, err)
	assert.False(t, found)

	full := model.SeatSet(math.MaxUint64)
	_, found, err = Recommend(1, full)
	require.NoError(t, err)
	assert.False(t, found)

	// Every row has a gap in the middle: no 5-seat run anywhere.
	var gaps model.SeatSet
	for r := 0; r < model.Rows; r++ {
		gaps = gaps.With(model.SeatID(r*model.RowWidth + 4))
	}
	_, found, err = Recommend(5, gaps)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecommend_InvalidCount(t *testing.T) {
	_, found, err := Recommend(0, 0)
	assert.False(t, found)
	assert.True(t, errs.Is(err, errs.ErrValidation))
}

func hasRun(occupied model.SeatSet, k int) bool {
	for r := 0; r < model.Rows; r++ {
		for s := 0; s+k <= model.RowWidth; s++ {
			if model.WindowMask(r, s, k).Intersect(occupied).IsEmpty() {
				return true
			}
		}
	}
	return false
}

func TestRecommend_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 5000; i++ {
		// Sparse to dense occupancy.
		occupied := model.SeatSet(rng.Uint64() & rng.Uint64())
		if i%3 == 0 {
			occupied = model.SeatSet(rng.Uint64() | rng.Uint64())
		}
		k := 1 + rng.IntN(model.RowWidth)

		b, found, err := Recommend(k, occupied)
		require.NoError(t, err)
		require.Equal(t, hasRun(occupied, k), found, "k=%d occupied=%s", k, occupied)
		if !found {
			continue
		}

		seats := b.Seats()
		assert.Equal(t, k, seats.Len())
		assert.True(t, seats.Intersect(occupied).IsEmpty(), "block overlaps occupancy")
		assert.Equal(t, seats, seats.Intersect(model.RowMask(b.Row)), "block spans rows")

		// No more-preferred row had room.
		for _, r := range model.RowPreference {
			if r == b.Row {
				break
			}
			for s := 0; s+k <= model.RowWidth; s++ {
				assert.False(t, model.WindowMask(r, s, k).Intersect(occupied).IsEmpty())
			}
		}
	}
}
