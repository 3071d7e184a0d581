package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Setting keys recognised by the lending policy.
const (
	SettingMaxActiveStudent    = "loan.max_active.student"
	SettingMaxActiveStaff      = "loan.max_active.staff"
	SettingDefaultDurationDays = "loan.default_duration_days"
	SettingPenaltyRatePerDay   = "penalty.rate_per_day"
	SettingReservationWindow   = "reservation.window_days"
)

// Setting represents a persisted policy entry.
type Setting struct {
	Key         string    `db:"key" json:"key"`
	Value       string    `db:"value" json:"value"`
	Description *string   `db:"description" json:"description,omitempty"`
	UpdatedBy   *string   `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// LoanPolicy gathers the lending parameters applied by the ledger.
// Zero values are replaced by the documented defaults at load time.
type LoanPolicy struct {
	MaxActiveStudent      int             `json:"max_active_student"`
	MaxActiveStaff        int             `json:"max_active_staff"`
	DefaultDurationDays   int             `json:"default_duration_days"`
	PenaltyRatePerDay     decimal.Decimal `json:"penalty_rate_per_day"`
	ReservationWindowDays int             `json:"reservation_window_days"`
}

// DefaultLoanPolicy returns the fallback policy used when settings rows are absent.
func DefaultLoanPolicy() LoanPolicy {
	return LoanPolicy{
		MaxActiveStudent:      3,
		MaxActiveStaff:        5,
		DefaultDurationDays:   14,
		PenaltyRatePerDay:     decimal.NewFromInt(100),
		ReservationWindowDays: 7,
	}
}

// MaxActive resolves the concurrent-loan limit for a borrower kind.
func (p LoanPolicy) MaxActive(kind BorrowerKind) int {
	switch kind {
	case BorrowerKindStaff:
		return p.MaxActiveStaff
	default:
		return p.MaxActiveStudent
	}
}

// Loan duration bounds enforced on every borrow request.
const (
	MinLoanDurationDays = 1
	MaxLoanDurationDays = 90
)
