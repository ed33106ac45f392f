// Package recommend proposes a contiguous block of free seats, preferring
// central rows and, within a row, the block closest to the aisle centre.
package recommend

import (
	"cmp"
	"slices"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// Block is a run of seats inside one row.
type Block struct {
	Row   int
	Start int // first column
	Size  int
}

// Seats expands the block into seat ids.
func (b Block) Seats() model.SeatSet {
	return model.WindowMask(b.Row, b.Start, b.Size)
}

type window struct {
	start int
	// offset is twice |centre(window) - centre(row)| so it stays integral.
	offset int
}

// Recommend returns the best block of k free seats given the occupied set.
// Rows are visited in model.RowPreference order and the first row with any
// free window wins; inside that row the window nearest the row centre wins,
// ties going to the smaller start. found is false when k exceeds a row or
// no row has room. A k below 1 is a caller error.
func Recommend(k int, occupied model.SeatSet) (Block, bool, error) {
	if k < 1 {
		return Block{}, false, errs.Validation("seat count must be at least 1, got %d", k)
	}
	if k > model.RowWidth {
		return Block{}, false, nil
	}

	candidates := make([]window, 0, model.RowWidth)
	for _, row := range model.RowPreference {
		candidates = candidates[:0]
		for start := 0; start+k <= model.RowWidth; start++ {
			if !model.WindowMask(row, start, k).Intersect(occupied).IsEmpty() {
				continue
			}
			candidates = append(candidates, window{start: start, offset: centreOffset2(start, k)})
		}
		if len(candidates) == 0 {
			continue
		}
		slices.SortStableFunc(candidates, func(a, b window) int {
			return cmp.Compare(a.offset, b.offset)
		})
		return Block{Row: row, Start: candidates[0].start, Size: k}, true, nil
	}
	return Block{}, false, nil
}

// centreOffset2 is 2*|start + (k-1)/2 - (RowWidth-1)/2|.
func centreOffset2(start, k int) int {
	d := 2*start + (k - 1) - (model.RowWidth - 1)
	if d < 0 {
		return -d
	}
	return d
}
