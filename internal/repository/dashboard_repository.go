package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/scolaris-app/biblio-api/internal/models"
)

// DashboardRepository aggregates library-wide counters.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Summary collects the counters shown on the landing page in one round trip.
func (r *DashboardRepository) Summary(ctx context.Context, asOf time.Time) (*models.DashboardSummary, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM loans WHERE status = 'active') AS active_loans,
        (SELECT COUNT(*) FROM loans WHERE status = 'active' AND due_date < $1) AS overdue_loans,
        (SELECT COALESCE(SUM(available_copies), 0) FROM books WHERE status <> 'lost') AS available_books,
        (SELECT COUNT(*) FROM reservations WHERE status = 'active') AS active_reservations,
        (SELECT COUNT(*) FROM penalties WHERE status = 'unpaid') AS unpaid_penalties,
        (SELECT COALESCE(SUM(amount), 0) FROM penalties WHERE status = 'unpaid') AS unpaid_penalty_total`
	var summary models.DashboardSummary
	if err := r.db.GetContext(ctx, &summary, query, asOf.UTC()); err != nil {
		return nil, fmt.Errorf("dashboard summary: %w", err)
	}
	return &summary, nil
}
