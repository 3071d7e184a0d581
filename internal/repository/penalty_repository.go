package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/scolaris-app/biblio-api/internal/models"
)

// PenaltyRepository manages persistence for penalties. Rows are only ever
// created by the return transaction; this repository covers the read and
// payment side.
type PenaltyRepository struct {
	db *sqlx.DB
}

// NewPenaltyRepository constructs a PenaltyRepository.
func NewPenaltyRepository(db *sqlx.DB) *PenaltyRepository {
	return &PenaltyRepository{db: db}
}

// FindByID fetches a penalty by ID.
func (r *PenaltyRepository) FindByID(ctx context.Context, id string) (*models.Penalty, error) {
	const query = `SELECT id, loan_id, kind, amount, description, status, processed_by, created_at, paid_at
        FROM penalties WHERE id = $1`
	var penalty models.Penalty
	if err := r.db.GetContext(ctx, &penalty, query, id); err != nil {
		return nil, err
	}
	return &penalty, nil
}

// List returns penalties matching the provided filters.
func (r *PenaltyRepository) List(ctx context.Context, filter models.PenaltyFilter) ([]models.Penalty, int, error) {
	base := "FROM penalties p JOIN loans l ON l.id = p.loan_id"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.LoanID != "" {
		conditions = append(conditions, fmt.Sprintf("p.loan_id = $%d", len(args)+1))
		args = append(args, filter.LoanID)
	}
	if filter.BorrowerKind != nil {
		conditions = append(conditions, fmt.Sprintf("l.borrower_kind = $%d", len(args)+1))
		args = append(args, *filter.BorrowerKind)
	}
	if filter.BorrowerID != "" {
		conditions = append(conditions, fmt.Sprintf("l.borrower_id = $%d", len(args)+1))
		args = append(args, filter.BorrowerID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.loan_id, p.kind, p.amount, p.description, p.status, p.processed_by, p.created_at, p.paid_at
        %s ORDER BY p.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var penalties []models.Penalty
	if err := r.db.SelectContext(ctx, &penalties, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list penalties: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count penalties: %w", err)
	}
	return penalties, total, nil
}

// MarkPaid settles an unpaid penalty.
func (r *PenaltyRepository) MarkPaid(ctx context.Context, id, processedBy string, paidAt time.Time) error {
	const query = `UPDATE penalties SET status = 'paid', processed_by = $2, paid_at = $3 WHERE id = $1 AND status = 'unpaid'`
	res, err := r.db.ExecContext(ctx, query, id, processedBy, paidAt)
	if err != nil {
		return fmt.Errorf("mark penalty paid: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark penalty paid: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// OutstandingTotal sums the unpaid penalties of a borrower.
func (r *PenaltyRepository) OutstandingTotal(ctx context.Context, borrower models.Borrower) (decimal.Decimal, error) {
	const query = `SELECT COALESCE(SUM(p.amount), 0)
        FROM penalties p JOIN loans l ON l.id = p.loan_id
        WHERE l.borrower_kind = $1 AND l.borrower_id = $2 AND p.status = 'unpaid'`
	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, borrower.Kind, borrower.ID); err != nil {
		return decimal.Zero, fmt.Errorf("sum outstanding penalties: %w", err)
	}
	return total, nil
}

// insertPenalty writes a penalty row within the caller's transaction.
func insertPenalty(ctx context.Context, ext sqlx.ExtContext, penalty *models.Penalty) error {
	if penalty.ID == "" {
		penalty.ID = uuid.NewString()
	}
	if penalty.CreatedAt.IsZero() {
		penalty.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO penalties (id, loan_id, kind, amount, description, status, processed_by, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := ext.ExecContext(ctx, query, penalty.ID, penalty.LoanID, penalty.Kind, penalty.Amount, penalty.Description, penalty.Status, penalty.ProcessedBy, penalty.CreatedAt); err != nil {
		return fmt.Errorf("insert penalty: %w", err)
	}
	return nil
}
