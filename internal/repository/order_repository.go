package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// OrderRepo persists orders in MySQL. An order lives in the orders table;
// its seats are rows of order_seats. All timestamps are stored in UTC.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `id, customer_id, movie_id, showtime, hall_id, hold_id,
       subtotal, booking_fee, tax, discount, total,
       promo_code, discount_type, discount_value,
       status, created_at, updated_at,
       payment_method, transaction_id, paid_at, booking_reference,
       refund_amount, cancel_reason, cancelled_at`

// Create inserts the order and its seats in one transaction.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Transient(err, "begin order insert")
	}
	defer func() { _ = tx.Rollback() }()

	var promoCode, discountType sql.NullString
	var discountValue decimal.NullDecimal
	if o.Promo != nil {
		promoCode = nullString(o.Promo.Code)
		discountType = nullString(string(o.Promo.DiscountType))
		discountValue = decimal.NewNullDecimal(o.Promo.DiscountValue)
	}

	const q = `INSERT INTO orders (id, customer_id, movie_id, showtime, hall_id, hold_id,
                   subtotal, booking_fee, tax, discount, total,
                   promo_code, discount_type, discount_value,
                   status, created_at, updated_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		o.ID, o.CustomerID, o.Session.MovieID, o.Session.Showtime, o.Session.HallID, o.HoldID,
		o.Pricing.Subtotal, o.Pricing.BookingFee, o.Pricing.Tax, o.Pricing.Discount, o.Pricing.Total,
		promoCode, discountType, discountValue,
		string(o.Status), o.CreatedAt.UTC(), o.UpdatedAt.UTC(),
	); err != nil {
		return errs.Transient(err, "insert order")
	}

	if err := insertSeatsTx(ctx, tx, o.ID, o.Seats); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Transient(err, "commit order insert")
	}
	return nil
}

// insertSeatsTx writes one order_seats row per seat in a single statement.
func insertSeatsTx(ctx context.Context, tx *sql.Tx, orderID string, seats model.SeatSet) error {
	ids := seats.Ints()
	if len(ids) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO order_seats (order_id, seat_id) VALUES `)
	args := make([]any, 0, len(ids)*2)
	for i, id := range ids {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?)")
		args = append(args, orderID, id)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return errs.Transient(err, "insert order seats")
	}
	return nil
}

// Get loads one order with its seats.
func (r *OrderRepo) Get(ctx context.Context, id string) (*model.Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, dbError(err, "load order", "order", id)
	}
	seats, err := r.loadSeats(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Seats = seats[o.ID]
	return o, nil
}

// ListByCustomer returns the customer's orders newest first.
func (r *OrderRepo) ListByCustomer(ctx context.Context, customerID uint64, limit int) ([]model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE customer_id = ? ORDER BY created_at DESC`
	args := []any{customerID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errs.Transient(err, "list orders")
	}
	defer rows.Close()

	out := make([]model.Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errs.Transient(err, "scan order")
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transient(err, "list orders")
	}
	if len(ids) == 0 {
		return out, nil
	}

	seats, err := r.loadSeats(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Seats = seats[out[i].ID]
	}
	return out, nil
}

// loadSeats fetches the seat sets of several orders in one query.
func (r *OrderRepo) loadSeats(ctx context.Context, orderIDs []string) (map[string]model.SeatSet, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT order_id, seat_id FROM order_seats WHERE order_id IN (`+placeholders+`) ORDER BY order_id, seat_id`, args...)
	if err != nil {
		return nil, errs.Transient(err, "load order seats")
	}
	defer rows.Close()

	out := make(map[string]model.SeatSet, len(orderIDs))
	for rows.Next() {
		var orderID string
		var seat int
		if err := rows.Scan(&orderID, &seat); err != nil {
			return nil, errs.Transient(err, "scan order seat")
		}
		id := model.SeatID(seat)
		if !id.Valid() {
			return nil, errs.Newf("order %s has out of range seat %d", orderID, seat)
		}
		out[orderID] = out[orderID].With(id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Transient(err, "load order seats")
	}
	return out, nil
}

// Transition writes the mutable columns of o only while the stored status
// is still from. Zero affected rows means another writer got there first,
// or the order does not exist.
func (r *OrderRepo) Transition(ctx context.Context, from model.OrderStatus, o *model.Order) error {
	const q = `UPDATE orders
               SET status = ?, updated_at = ?,
                   payment_method = ?, transaction_id = ?, paid_at = ?, booking_reference = ?,
                   refund_amount = ?, cancel_reason = ?, cancelled_at = ?
               WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q,
		string(o.Status), o.UpdatedAt.UTC(),
		nullString(string(o.PaymentMethod)), nullString(o.TransactionID), nullTime(o.PaidAt), nullString(o.BookingReference),
		o.RefundAmount, nullString(string(o.CancelReason)), nullTime(o.CancelledAt),
		o.ID, string(from),
	)
	if err != nil {
		if isDuplicateKey(err) {
			return errs.Mark(errs.Wrapf(err, "update order %s", o.ID), errs.ErrDuplicate)
		}
		return errs.Transient(err, "update order status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Transient(err, "update order status")
	}
	if n == 1 {
		return nil
	}

	var current string
	if err := r.db.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, o.ID).Scan(&current); err != nil {
		return dbError(err, "load order status", "order", o.ID)
	}
	return errs.Mark(errs.Newf("order %s is %s, expected %s", o.ID, current, from), errs.ErrInvalidTransition)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(s rowScanner) (*model.Order, error) {
	var (
		o                                    model.Order
		status                               string
		promoCode, discountType              sql.NullString
		discountValue                        decimal.NullDecimal
		payMethod, txID, bookingRef, cancelR sql.NullString
		paidAt, cancelledAt                  sql.NullTime
	)
	if err := s.Scan(
		&o.ID, &o.CustomerID, &o.Session.MovieID, &o.Session.Showtime, &o.Session.HallID, &o.HoldID,
		&o.Pricing.Subtotal, &o.Pricing.BookingFee, &o.Pricing.Tax, &o.Pricing.Discount, &o.Pricing.Total,
		&promoCode, &discountType, &discountValue,
		&status, &o.CreatedAt, &o.UpdatedAt,
		&payMethod, &txID, &paidAt, &bookingRef,
		&o.RefundAmount, &cancelR, &cancelledAt,
	); err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if promoCode.Valid {
		o.Promo = &model.PromoDescriptor{
			Code:          promoCode.String,
			DiscountType:  model.DiscountType(discountType.String),
			DiscountValue: discountValue.Decimal,
		}
	}
	o.PaymentMethod = model.PaymentMethod(payMethod.String)
	o.TransactionID = txID.String
	o.BookingReference = bookingRef.String
	o.CancelReason = model.CancelReason(cancelR.String)
	o.PaidAt = timePtr(paidAt)
	o.CancelledAt = timePtr(cancelledAt)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return &o, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
