package models

import "github.com/shopspring/decimal"

// DashboardSummary aggregates the library counters shown on the landing page.
type DashboardSummary struct {
	ActiveLoans        int             `db:"active_loans" json:"active_loans"`
	OverdueLoans       int             `db:"overdue_loans" json:"overdue_loans"`
	AvailableBooks     int             `db:"available_books" json:"available_books"`
	ActiveReservations int             `db:"active_reservations" json:"active_reservations"`
	UnpaidPenalties    int             `db:"unpaid_penalties" json:"unpaid_penalties"`
	UnpaidPenaltyTotal decimal.Decimal `db:"unpaid_penalty_total" json:"unpaid_penalty_total"`
}
