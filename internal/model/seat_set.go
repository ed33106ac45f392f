package model

import (
	"encoding/json"
	"math/bits"
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
)

// SeatSet is a set of seat ids stored as a 64-bit mask; bit i is seat i.
// The zero value is the empty set.
type SeatSet uint64

// NewSeatSet builds a set from caller-supplied ids. It rejects ids outside
// the table and duplicates, since an order never names a seat twice.
func NewSeatSet(ids ...SeatID) (SeatSet, error) {
	var s SeatSet
	for _, id := range ids {
		if !id.Valid() {
			return 0, errs.Validation("seat id %d is out of range [0, %d)", int(id), Capacity)
		}
		if s.Has(id) {
			return 0, errs.Validation("seat id %d is listed more than once", int(id))
		}
		s = s.With(id)
	}
	return s, nil
}

// MustSeatSet is NewSeatSet for static tables and tests.
func MustSeatSet(ids ...SeatID) SeatSet {
	s, err := NewSeatSet(ids...)
	if err != nil {
		panic(err)
	}
	return s
}

// SeatSetFromInts converts wire-level ints.
func SeatSetFromInts(ids []int) (SeatSet, error) {
	conv := make([]SeatID, len(ids))
	for i, v := range ids {
		conv[i] = SeatID(v)
	}
	return NewSeatSet(conv...)
}

// RowMask is the set of all seats in row.
func RowMask(row int) SeatSet {
	if row < 0 || row >= Rows {
		return 0
	}
	return SeatSet((uint64(1)<<RowWidth - 1) << (uint(row) * RowWidth))
}

// WindowMask is the run of k seats starting at column start of row.
func WindowMask(row, start, k int) SeatSet {
	if k <= 0 || start < 0 || start+k > RowWidth || row < 0 || row >= Rows {
		return 0
	}
	return SeatSet((uint64(1)<<uint(k) - 1) << uint(row*RowWidth+start))
}

func (s SeatSet) Has(id SeatID) bool {
	return id.Valid() && s&(1<<uint(id)) != 0
}

func (s SeatSet) With(id SeatID) SeatSet {
	if !id.Valid() {
		return s
	}
	return s | 1<<uint(id)
}

func (s SeatSet) Union(o SeatSet) SeatSet     { return s | o }
func (s SeatSet) Intersect(o SeatSet) SeatSet { return s & o }
func (s SeatSet) Without(o SeatSet) SeatSet   { return s &^ o }
func (s SeatSet) Len() int                    { return bits.OnesCount64(uint64(s)) }
func (s SeatSet) IsEmpty() bool               { return s == 0 }

// IDs lists members in ascending order.
func (s SeatSet) IDs() []SeatID {
	out := make([]SeatID, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, SeatID(bits.TrailingZeros64(v)))
	}
	return out
}

func (s SeatSet) Ints() []int {
	ids := s.IDs()
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// Labels lists the ticket labels ("D4", "D5") in ascending seat order.
func (s SeatSet) Labels() []string {
	ids := s.IDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Label()
	}
	return out
}

// String is the sorted, comma-joined id list, e.g. "27,28".
func (s SeatSet) String() string {
	ids := s.IDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(int(id))
	}
	return strings.Join(parts, ",")
}

// ParseSeatSet reverses String.
func ParseSeatSet(v string) (SeatSet, error) {
	if strings.TrimSpace(v) == "" {
		return 0, nil
	}
	var s SeatSet
	for _, p := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, errs.Validation("invalid seat id %q", p)
		}
		id := SeatID(n)
		if !id.Valid() {
			return 0, errs.Validation("seat id %d is out of range [0, %d)", n, Capacity)
		}
		s = s.With(id)
	}
	return s, nil
}

func (s SeatSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Ints())
}

func (s *SeatSet) UnmarshalJSON(b []byte) error {
	var ids []int
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	set, err := SeatSetFromInts(ids)
	if err != nil {
		return err
	}
	*s = set
	return nil
}
