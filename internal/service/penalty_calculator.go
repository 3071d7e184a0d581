package service

import (
	"time"

	"github.com/shopspring/decimal"
)

// DaysLate returns the number of whole calendar days between the due date and
// the actual return date. Zero or negative differences mean an on-time return.
func DaysLate(due, returned time.Time) int {
	dueDay := truncateToDay(due)
	returnedDay := truncateToDay(returned)
	if !returnedDay.After(dueDay) {
		return 0
	}
	return int(returnedDay.Sub(dueDay).Hours() / 24)
}

// LateReturnAmount computes the charge for a late return: daysLate times the
// configured per-day rate. No rounding, no cap.
func LateReturnAmount(daysLate int, ratePerDay decimal.Decimal) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	return ratePerDay.Mul(decimal.NewFromInt(int64(daysLate)))
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
