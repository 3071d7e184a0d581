package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus enumerates the lifecycle states of a loan.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"
	LoanStatusLost     LoanStatus = "lost"
)

// Loan records who borrowed which book, when, and when it is due back.
type Loan struct {
	ID            string          `db:"id" json:"id"`
	BookID        string          `db:"book_id" json:"book_id"`
	BorrowerKind  BorrowerKind    `db:"borrower_kind" json:"borrower_kind"`
	BorrowerID    string          `db:"borrower_id" json:"borrower_id"`
	StartDate     time.Time       `db:"start_date" json:"start_date"`
	DueDate       time.Time       `db:"due_date" json:"due_date"`
	ReturnedAt    *time.Time      `db:"returned_at" json:"returned_at,omitempty"`
	Status        LoanStatus      `db:"status" json:"status"`
	PenaltyAmount decimal.Decimal `db:"penalty_amount" json:"penalty_amount"`
	ProcessedBy   string          `db:"processed_by" json:"processed_by"`
	Notes         string          `db:"notes" json:"notes"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// Borrower returns the tagged borrower identity of the loan.
func (l Loan) Borrower() Borrower {
	return Borrower{Kind: l.BorrowerKind, ID: l.BorrowerID}
}

// LoanDetail joins the loan with book and borrower display fields.
type LoanDetail struct {
	Loan
	BookTitle    string `db:"book_title" json:"book_title"`
	BookAuthor   string `db:"book_author" json:"book_author"`
	BorrowerName string `db:"borrower_name" json:"borrower_name"`
}

// LoanFilter encapsulates allowed search parameters for listing loans.
type LoanFilter struct {
	BookID       string
	BorrowerKind *BorrowerKind
	BorrowerID   string
	Status       *LoanStatus
	OverdueOnly  bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
