package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/scolaris-app/biblio-api/internal/models"
)

// BorrowerRepository resolves borrower identities against the student and
// staff rosters.
type BorrowerRepository struct {
	db *sqlx.DB
}

// NewBorrowerRepository constructs a BorrowerRepository.
func NewBorrowerRepository(db *sqlx.DB) *BorrowerRepository {
	return &BorrowerRepository{db: db}
}

// Find resolves the borrower's display record, or sql.ErrNoRows when the
// identity does not exist in the roster for its kind.
func (r *BorrowerRepository) Find(ctx context.Context, borrower models.Borrower) (*models.BorrowerDetail, error) {
	var query string
	switch borrower.Kind {
	case models.BorrowerKindStudent:
		query = `SELECT full_name, active FROM students WHERE id = $1`
	case models.BorrowerKindStaff:
		query = `SELECT full_name, active FROM staff WHERE id = $1`
	default:
		return nil, fmt.Errorf("unknown borrower kind %q", borrower.Kind)
	}
	detail := models.BorrowerDetail{Borrower: borrower}
	if err := r.db.QueryRowxContext(ctx, query, borrower.ID).Scan(&detail.FullName, &detail.Active); err != nil {
		return nil, err
	}
	return &detail, nil
}
