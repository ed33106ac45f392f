package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-booking/internal/clock"
	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/logger"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
	"github.com/iliyamo/cinema-seat-booking/internal/promo"
)

var promoCols = []string{"id", "code", "discount_type", "discount_value", "description",
	"expires_at", "usage_limit", "used_count", "active", "created_at"}

func TestPromoRepo_FindByCode(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPromoRepo(db)
	expires := created.Add(30 * 24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM promo_codes WHERE code = ?")).
		WithArgs("SAVE10").
		WillReturnRows(sqlmock.NewRows(promoCols).
			AddRow(1, "SAVE10", "PERCENTAGE", "10.00", "Ten percent off", expires, 100, 3, true, created))

	p, err := repo.FindByCode(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, model.DiscountPercentage, p.DiscountType)
	assert.Equal(t, "10", p.DiscountValue.String())
	assert.Equal(t, 100, p.UsageLimit)
	assert.Equal(t, 3, p.UsedCount)
	assert.True(t, p.Active)
	require.NotNil(t, p.ExpiresAt)
	assert.Equal(t, expires, *p.ExpiresAt)
}

func TestPromoRepo_FindByCodeMissing(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPromoRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM promo_codes")).WillReturnRows(sqlmock.NewRows(promoCols))
	_, err := repo.FindByCode(context.Background(), "NOPE")
	assert.True(t, errs.Is(err, errs.ErrNotFound))
}

func TestPromoRepo_IncrementUsage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPromoRepo(db)
	q := regexp.QuoteMeta("WHERE code = ? AND (usage_limit = 0 OR used_count < usage_limit)")

	mock.ExpectExec(q).WithArgs("SAVE10").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("SAVE10").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.IncrementUsage(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.IncrementUsage(context.Background(), "SAVE10")
	require.NoError(t, err)
	assert.False(t, ok, "limit reached")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoRepo_DecrementUsage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPromoRepo(db)

	mock.ExpectExec(regexp.QuoteMeta("SET used_count = used_count - 1 WHERE code = ? AND used_count > 0")).
		WithArgs("SAVE10").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DecrementUsage(context.Background(), "SAVE10"))
	require.NoError(t, mock.ExpectationsWereMet())
}

// The repository plugs into the promo service as its catalog.
func TestPromoRepo_AsCatalog(t *testing.T) {
	db, mock := newMock(t)
	svc := promo.NewService(NewPromoRepo(db), clock.NewMockClock(created), logger.Discard())

	mock.ExpectQuery(regexp.QuoteMeta("FROM promo_codes WHERE code = ?")).
		WithArgs("OLD").
		WillReturnRows(sqlmock.NewRows(promoCols).
			AddRow(2, "OLD", "FIXED_AMOUNT", "5.00", nil, created.Add(-time.Hour), 0, 0, true, created))

	res, err := svc.Validate(context.Background(), "old")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, model.PromoMsgExpired, res.Message)
}
