// Package ticket renders the admission QR code for a paid order. The code
// is derived from the stored order on every request, so it never needs to
// be persisted.
package ticket

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// DefaultSize is the edge length in pixels of a rendered ticket.
const DefaultSize = 300

// Payload is the text scanned at the entrance.
func Payload(o *model.Order) (string, error) {
	if o.Status != model.OrderConfirmed || o.BookingReference == "" {
		return "", errs.Mark(errs.Newf("order %s is %s; tickets are issued for paid orders only", o.ID, o.Status), errs.ErrInvalidTransition)
	}
	return fmt.Sprintf("BOOKING REF: %s\nORDER: %s\nMOVIE: %d\nSESSION: %s\nHALL: %d\nSEATS: %s",
		o.BookingReference, o.ID, o.Session.MovieID, o.Session.Showtime, o.Session.HallID,
		strings.Join(o.Seats.Labels(), ", ")), nil
}

// PNG renders the ticket as a size x size PNG.
func PNG(o *model.Order, size int) ([]byte, error) {
	payload, err := Payload(o)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultSize
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, errs.Wrapf(err, "encode ticket for order %s", o.ID)
	}
	return png, nil
}
