package coupon

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var couponCols = []string{"id", "name", "stock", "total_stock", "start_time", "end_time", "created_at", "updated_at"}

func TestGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM coupons WHERE id = $1`)).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	c, err := repo.GetByID(context.Background(), 9)
	require.NoError(t, err)
	require.Nil(t, c)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListValid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE start_time <= $1 AND end_time >= $1`)).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows(couponCols).
			AddRow(int64(1), "flash-100", 5, 10, now.Add(-time.Hour), now.Add(time.Hour), now, now))

	coupons, err := repo.ListValid(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, coupons, 1)
	require.Equal(t, "flash-100", coupons[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetDaily(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)
	day := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	dayStart := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24*time.Hour - time.Second)

	mock.ExpectExec(regexp.QuoteMeta(`SET stock = total_stock, start_time = $1, end_time = $2`)).
		WithArgs(dayStart, dayEnd).
		WillReturnResult(sqlmock.NewResult(0, 2))

	mock.ExpectQuery(regexp.QuoteMeta(`FROM coupons ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows(couponCols).
			AddRow(int64(1), "a", 10, 10, dayStart, dayEnd, day, day).
			AddRow(int64(2), "b", 3, 3, dayStart, dayEnd, day, day))

	coupons, err := repo.ResetDaily(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, coupons, 2)
	require.Equal(t, 10, coupons[0].Stock)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE coupons SET stock = $1, updated_at = NOW() WHERE id = $2`)).
		WithArgs(7, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStock(context.Background(), 1, 7))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCouponValidWindow(t *testing.T) {
	now := time.Now()
	c := Coupon{StartTime: now.Add(-time.Hour), EndTime: now.Add(time.Hour)}
	require.True(t, c.Valid(now))
	require.False(t, c.Valid(now.Add(2*time.Hour)))
	require.False(t, c.Valid(now.Add(-2*time.Hour)))
}
