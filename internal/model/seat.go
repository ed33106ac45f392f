package model

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"
)

// Every hall shares one fixed layout: 8 rows of 8 seats, numbered row-major
// from the screen. Seat ids are therefore indexes into a fixed array.
const (
	Rows     = 8
	RowWidth = 8
	Capacity = Rows * RowWidth
)

// SeatType classifies a seat for pricing.
type SeatType string

const (
	SeatNormal  SeatType = "NORMAL"
	SeatPremium SeatType = "PREMIUM"
	SeatVIP     SeatType = "VIP"
	SeatCouple  SeatType = "COUPLE"
)

// SeatID is a zero-based index into the seat table, in [0, Capacity).
type SeatID int

func (id SeatID) Valid() bool { return id >= 0 && id < Capacity }

func (id SeatID) Row() int { return int(id) / RowWidth }

func (id SeatID) Col() int { return int(id) % RowWidth }

// Label renders the seat the way tickets print it: row letter plus a
// one-based column, e.g. seat 0 is "A1" and seat 63 is "H8".
func (id SeatID) Label() string {
	if !id.Valid() {
		return "?"
	}
	return string(rune('A'+id.Row())) + strconv.Itoa(id.Col()+1)
}

// Seat is one immutable entry of the seat table.
//
// Fields:
//
//	ID        – index in the table, also the public seat id.
//	Type      – pricing class.
//	BasePrice – price before fees, tax and discounts.
type Seat struct {
	ID        SeatID
	Type      SeatType
	BasePrice decimal.Decimal
}

var basePrices = map[SeatType]decimal.Decimal{
	SeatNormal:  decimal.NewFromInt(10),
	SeatPremium: decimal.NewFromInt(15),
	SeatVIP:     decimal.NewFromInt(25),
	SeatCouple:  decimal.NewFromInt(30),
}

// vipSeats are the four centre seats of rows D and E.
var vipSeats = MustSeatSet(27, 28, 35, 36)

var seatTable = buildSeatTable()

// RowPreference ranks rows from most to least comfortable: by distance from
// row Rows/2, ties going to the row nearer the screen.
var RowPreference = buildRowPreference()

func buildSeatTable() [Capacity]Seat {
	var t [Capacity]Seat
	for i := range t {
		id := SeatID(i)
		st := seatTypeOf(id)
		t[i] = Seat{ID: id, Type: st, BasePrice: basePrices[st]}
	}
	return t
}

func seatTypeOf(id SeatID) SeatType {
	switch {
	case vipSeats.Has(id):
		return SeatVIP
	case id >= Capacity-RowWidth:
		return SeatCouple
	case id < RowWidth:
		return SeatPremium
	default:
		return SeatNormal
	}
}

func buildRowPreference() [Rows]int {
	rows := make([]int, Rows)
	for i := range rows {
		rows[i] = i
	}
	mid := Rows / 2
	slices.SortStableFunc(rows, func(a, b int) int {
		return cmp.Compare(absInt(a-mid), absInt(b-mid))
	})
	var out [Rows]int
	copy(out[:], rows)
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// SeatAt looks up a seat by id.
func SeatAt(id SeatID) (Seat, bool) {
	if !id.Valid() {
		return Seat{}, false
	}
	return seatTable[id], true
}

// SeatTable returns a copy of the full table.
func SeatTable() [Capacity]Seat {
	return seatTable
}

// BasePrice returns the price of a seat class.
func BasePrice(t SeatType) decimal.Decimal {
	return basePrices[t]
}
