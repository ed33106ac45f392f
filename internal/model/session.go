package model

import (
	"strconv"
	"strings"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
)

// SessionKey identifies one screening and therefore one seat map.
//
// Fields:
//
//	MovieID  – movie being screened.
//	Showtime – screening slot as the box office labels it ("2025-06-01 19:30").
//	HallID   – hall hosting the screening.
type SessionKey struct {
	MovieID  uint64 `json:"movie_id"`
	Showtime string `json:"showtime"`
	HallID   uint64 `json:"hall_id"`
}

const maxShowtimeLen = 64

// Normalize returns k with surrounding whitespace trimmed from the
// showtime. Keys must be normalized before they are validated or used to
// address a seat map.
func (k SessionKey) Normalize() SessionKey {
	k.Showtime = strings.TrimSpace(k.Showtime)
	return k
}

// Validate checks the key is addressable. The showtime must not contain the
// separators used by String, nor Redis hash-tag braces.
func (k SessionKey) Validate() error {
	if k.MovieID == 0 {
		return errs.Validation("movie_id is required")
	}
	if k.HallID == 0 {
		return errs.Validation("hall_id is required")
	}
	st := k.Showtime
	if strings.TrimSpace(st) == "" {
		return errs.Validation("showtime is required")
	}
	if strings.TrimSpace(st) != st {
		return errs.Validation("showtime must not start or end with whitespace")
	}
	if len(st) > maxShowtimeLen {
		return errs.Validation("showtime must be at most %d characters", maxShowtimeLen)
	}
	if strings.ContainsAny(st, "|{}") {
		return errs.Validation("showtime contains reserved characters")
	}
	return nil
}

// String encodes the key as "movie|hall|showtime".
func (k SessionKey) String() string {
	return strconv.FormatUint(k.MovieID, 10) + "|" + strconv.FormatUint(k.HallID, 10) + "|" + k.Showtime
}

// ParseSessionKey reverses String.
func ParseSessionKey(s string) (SessionKey, error) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return SessionKey{}, errs.Validation("malformed session key %q", s)
	}
	movie, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return SessionKey{}, errs.Validation("malformed movie id in session key %q", s)
	}
	hall, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return SessionKey{}, errs.Validation("malformed hall id in session key %q", s)
	}
	k := SessionKey{MovieID: movie, HallID: hall, Showtime: parts[2]}
	return k, k.Validate()
}
