package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/scolaris-app/biblio-api/internal/models"
)

const loanColumns = `l.id, l.book_id, l.borrower_kind, l.borrower_id, l.start_date, l.due_date, l.returned_at, l.status, l.penalty_amount, l.processed_by, l.notes, l.created_at, l.updated_at`

const loanDetailSelect = `SELECT ` + loanColumns + `,
        b.title AS book_title, b.author AS book_author,
        COALESCE(st.full_name, sf.full_name, '') AS borrower_name
        FROM loans l
        JOIN books b ON b.id = l.book_id
        LEFT JOIN students st ON l.borrower_kind = 'student' AND st.id = l.borrower_id
        LEFT JOIN staff sf ON l.borrower_kind = 'staff' AND sf.id = l.borrower_id`

// LoanRepository manages persistence for the loan ledger. The borrow and
// return sequences run inside database transactions so the catalog counters
// never drift from the set of active loans.
type LoanRepository struct {
	db *sqlx.DB
}

// NewLoanRepository constructs a LoanRepository.
func NewLoanRepository(db *sqlx.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// CreateLoanParams carries the values for a new ledger entry.
type CreateLoanParams struct {
	BookID      string
	Borrower    models.Borrower
	StartDate   time.Time
	DueDate     time.Time
	ProcessedBy string
	Notes       string
}

// CreateLoan atomically claims a copy, inserts the loan row and converts the
// borrower's oldest active reservation for the book when one exists.
// Returns ErrNoAvailableCopy when every copy is already out.
func (r *LoanRepository) CreateLoan(ctx context.Context, params CreateLoanParams) (*models.Loan, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create loan: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := decrementBookAvailability(ctx, tx, params.BookID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	loan := &models.Loan{
		ID:           uuid.NewString(),
		BookID:       params.BookID,
		BorrowerKind: params.Borrower.Kind,
		BorrowerID:   params.Borrower.ID,
		StartDate:    params.StartDate,
		DueDate:      params.DueDate,
		Status:       models.LoanStatusActive,
		ProcessedBy:  params.ProcessedBy,
		Notes:        params.Notes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	const insert = `INSERT INTO loans (id, book_id, borrower_kind, borrower_id, start_date, due_date, status, penalty_amount, processed_by, notes, created_at, updated_at)
        VALUES (:id, :book_id, :borrower_kind, :borrower_id, :start_date, :due_date, :status, 0, :processed_by, :notes, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, loan); err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}

	if err := convertOldestActiveReservation(ctx, tx, params.BookID, params.Borrower); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create loan: %w", err)
	}
	committed = true
	return loan, nil
}

// ReturnLoanParams carries the values closing a loan.
type ReturnLoanParams struct {
	LoanID      string
	ReturnedAt  time.Time
	Condition   string
	Notes       string
	ProcessedBy string
	Penalty     *models.Penalty
}

// ReturnLoan closes an active loan, releases the copy back to the catalog and
// records the penalty row when one is owed. The loan update is guarded by
// status = 'active' so a second return of the same loan affects no row and
// the whole transaction rolls back.
func (r *LoanRepository) ReturnLoan(ctx context.Context, params ReturnLoanParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin return loan: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	amount := "0"
	if params.Penalty != nil {
		amount = params.Penalty.Amount.String()
	}
	const update = `UPDATE loans
        SET status = 'returned', returned_at = $2, penalty_amount = $3, notes = $4, processed_by = $5, updated_at = $6
        WHERE id = $1 AND status = 'active'
        RETURNING book_id`
	var bookID string
	if err := tx.QueryRowxContext(ctx, update, params.LoanID, params.ReturnedAt, amount, params.Notes, params.ProcessedBy, time.Now().UTC()).Scan(&bookID); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("close loan: %w", err)
	}
	if err := incrementBookAvailability(ctx, tx, bookID, params.Condition); err != nil {
		return err
	}

	if params.Penalty != nil {
		if err := insertPenalty(ctx, tx, params.Penalty); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit return loan: %w", err)
	}
	committed = true
	return nil
}

// Extend replaces the due date of an active loan.
func (r *LoanRepository) Extend(ctx context.Context, id string, newDueDate time.Time) error {
	const query = `UPDATE loans SET due_date = $2, updated_at = $3 WHERE id = $1 AND status = 'active'`
	res, err := r.db.ExecContext(ctx, query, id, newDueDate, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("extend loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("extend loan: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkLost flags an active loan as lost. Terminal: the copy is not released
// back to the catalog.
func (r *LoanRepository) MarkLost(ctx context.Context, id, processedBy, notes string) error {
	const query = `UPDATE loans SET status = 'lost', notes = $2, processed_by = $3, updated_at = $4 WHERE id = $1 AND status = 'active'`
	res, err := r.db.ExecContext(ctx, query, id, notes, processedBy, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark loan lost: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark loan lost: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID fetches a loan with book and borrower context.
func (r *LoanRepository) FindByID(ctx context.Context, id string) (*models.LoanDetail, error) {
	query := loanDetailSelect + " WHERE l.id = $1"
	var detail models.LoanDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// CountActiveByBorrower counts the borrower's open loans.
func (r *LoanRepository) CountActiveByBorrower(ctx context.Context, borrower models.Borrower) (int, error) {
	const query = `SELECT COUNT(*) FROM loans WHERE borrower_kind = $1 AND borrower_id = $2 AND status = 'active'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, borrower.Kind, borrower.ID); err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}
	return count, nil
}

// List returns loans matching the provided filters.
func (r *LoanRepository) List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, int, error) {
	base := `FROM loans l
        JOIN books b ON b.id = l.book_id
        LEFT JOIN students st ON l.borrower_kind = 'student' AND st.id = l.borrower_id
        LEFT JOIN staff sf ON l.borrower_kind = 'staff' AND sf.id = l.borrower_id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.BookID != "" {
		conditions = append(conditions, fmt.Sprintf("l.book_id = $%d", len(args)+1))
		args = append(args, filter.BookID)
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
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.OverdueOnly {
		conditions = append(conditions, fmt.Sprintf("l.status = 'active' AND l.due_date < $%d", len(args)+1))
		args = append(args, time.Now().UTC())
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"due_date":   "l.due_date",
		"start_date": "l.start_date",
		"created_at": "l.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "l.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT `+loanColumns+`,
        b.title AS book_title, b.author AS book_author,
        COALESCE(st.full_name, sf.full_name, '') AS borrower_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var loans []models.LoanDetail
	if err := r.db.SelectContext(ctx, &loans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}
	return loans, total, nil
}

// OverdueContact joins an overdue loan with the borrower's phone number for reminders.
type OverdueContact struct {
	LoanID       string              `db:"loan_id"`
	BookTitle    string              `db:"book_title"`
	BorrowerKind models.BorrowerKind `db:"borrower_kind"`
	BorrowerID   string              `db:"borrower_id"`
	BorrowerName string              `db:"borrower_name"`
	Phone        string              `db:"phone"`
	DueDate      time.Time           `db:"due_date"`
}

// ListOverdueContacts returns active loans past their due date together with
// the borrower's phone number, skipping borrowers without one on record.
func (r *LoanRepository) ListOverdueContacts(ctx context.Context, asOf time.Time) ([]OverdueContact, error) {
	const query = `SELECT l.id AS loan_id, b.title AS book_title, l.borrower_kind, l.borrower_id,
        COALESCE(st.full_name, sf.full_name, '') AS borrower_name,
        COALESCE(st.phone, sf.phone, '') AS phone,
        l.due_date
        FROM loans l
        JOIN books b ON b.id = l.book_id
        LEFT JOIN students st ON l.borrower_kind = 'student' AND st.id = l.borrower_id
        LEFT JOIN staff sf ON l.borrower_kind = 'staff' AND sf.id = l.borrower_id
        WHERE l.status = 'active' AND l.due_date < $1 AND COALESCE(st.phone, sf.phone, '') <> ''
        ORDER BY l.due_date ASC`
	var contacts []OverdueContact
	if err := r.db.SelectContext(ctx, &contacts, query, asOf); err != nil {
		return nil, fmt.Errorf("list overdue contacts: %w", err)
	}
	return contacts, nil
}
