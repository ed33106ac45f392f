package model

import "time"

// HoldStatus tracks a hold from creation to its end.
type HoldStatus string

const (
	HoldHeld      HoldStatus = "held"
	HoldConfirmed HoldStatus = "confirmed"
	HoldExpired   HoldStatus = "expired"
)

// Hold is a claim on a set of seats for one session. A held claim expires
// at ExpiresAt unless finalized; a confirmed claim is permanent until
// released by a cancellation.
//
// Fields:
//
//	ID        – hold identifier returned by TryReserve.
//	HolderID  – owner of the claim; the booking core uses the order id.
//	Session   – screening the seats belong to.
//	Seats     – claimed seats, never empty.
//	Status    – held, confirmed or expired.
//	CreatedAt – when the claim was granted.
//	ExpiresAt – deadline for Finalize while held.
type Hold struct {
	ID        string
	HolderID  string
	Session   SessionKey
	Seats     SeatSet
	Status    HoldStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Lapsed reports whether a held claim has reached its deadline.
func (h Hold) Lapsed(now time.Time) bool {
	return h.Status == HoldHeld && !now.Before(h.ExpiresAt)
}
