// Package repository holds the MySQL stores for orders and promo codes.
// Errors leaving this package carry an errs kind so higher layers such as
// the booking service and the HTTP handlers can tell a missing row from a
// stale transition or an unreachable database without importing
// database/sql.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
)

// erDupEntry is the MySQL server error for a UNIQUE key violation.
const erDupEntry = 1062

// notFound marks a lookup miss with errs.ErrNotFound.
func notFound(what string, key any) error {
	return errs.Mark(errs.Newf("%s %v not found", what, key), errs.ErrNotFound)
}

// dbError classifies a driver error. sql.ErrNoRows becomes a not-found
// error; anything else is treated as transient.
func dbError(err error, op, what string, key any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(what, key)
	}
	return errs.Transient(err, op)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// isDuplicateKey reports whether err is a MySQL duplicate-entry error.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errs.As(err, &me) && me.Number == erDupEntry
}
