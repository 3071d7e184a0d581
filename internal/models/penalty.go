package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PenaltyKind enumerates the causes for which a penalty is charged.
type PenaltyKind string

// PenaltyKindLateReturn is the only kind currently produced by the ledger.
const PenaltyKindLateReturn PenaltyKind = "late-return"

// PenaltyStatus enumerates the payment states of a penalty.
type PenaltyStatus string

const (
	PenaltyStatusUnpaid PenaltyStatus = "unpaid"
	PenaltyStatusPaid   PenaltyStatus = "paid"
)

// Penalty is a monetary charge accrued against a loan.
type Penalty struct {
	ID          string          `db:"id" json:"id"`
	LoanID      string          `db:"loan_id" json:"loan_id"`
	Kind        PenaltyKind     `db:"kind" json:"kind"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Description string          `db:"description" json:"description"`
	Status      PenaltyStatus   `db:"status" json:"status"`
	ProcessedBy string          `db:"processed_by" json:"processed_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	PaidAt      *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
}

// PenaltyFilter encapsulates allowed search parameters for listing penalties.
type PenaltyFilter struct {
	LoanID       string
	BorrowerKind *BorrowerKind
	BorrowerID   string
	Status       *PenaltyStatus
	Page         int
	PageSize     int
}
