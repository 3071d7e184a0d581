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

// ReservationRepository manages persistence for reservations.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository constructs a ReservationRepository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts a new reservation.
func (r *ReservationRepository) Create(ctx context.Context, reservation *models.Reservation) error {
	if reservation.ID == "" {
		reservation.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if reservation.CreatedAt.IsZero() {
		reservation.CreatedAt = now
	}
	reservation.UpdatedAt = now
	const query = `INSERT INTO reservations (id, book_id, borrower_kind, borrower_id, reserved_at, expires_at, status, created_at, updated_at)
        VALUES (:id, :book_id, :borrower_kind, :borrower_id, :reserved_at, :expires_at, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reservation); err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

// FindByID fetches a reservation by ID.
func (r *ReservationRepository) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	const query = `SELECT id, book_id, borrower_kind, borrower_id, reserved_at, expires_at, status, created_at, updated_at
        FROM reservations WHERE id = $1`
	var reservation models.Reservation
	if err := r.db.GetContext(ctx, &reservation, query, id); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// FindActiveByBookAndBorrower returns the oldest active reservation for the
// pair, or sql.ErrNoRows.
func (r *ReservationRepository) FindActiveByBookAndBorrower(ctx context.Context, bookID string, borrower models.Borrower) (*models.Reservation, error) {
	const query = `SELECT id, book_id, borrower_kind, borrower_id, reserved_at, expires_at, status, created_at, updated_at
        FROM reservations
        WHERE book_id = $1 AND borrower_kind = $2 AND borrower_id = $3 AND status = 'active'
        ORDER BY reserved_at ASC LIMIT 1`
	var reservation models.Reservation
	if err := r.db.GetContext(ctx, &reservation, query, bookID, borrower.Kind, borrower.ID); err != nil {
		return nil, err
	}
	return &reservation, nil
}

// List returns reservations matching the provided filters.
func (r *ReservationRepository) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	base := "FROM reservations r"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.BookID != "" {
		conditions = append(conditions, fmt.Sprintf("r.book_id = $%d", len(args)+1))
		args = append(args, filter.BookID)
	}
	if filter.BorrowerKind != nil {
		conditions = append(conditions, fmt.Sprintf("r.borrower_kind = $%d", len(args)+1))
		args = append(args, *filter.BorrowerKind)
	}
	if filter.BorrowerID != "" {
		conditions = append(conditions, fmt.Sprintf("r.borrower_id = $%d", len(args)+1))
		args = append(args, filter.BorrowerID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)+1))
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

	query := fmt.Sprintf(`SELECT r.id, r.book_id, r.borrower_kind, r.borrower_id, r.reserved_at, r.expires_at, r.status, r.created_at, r.updated_at
        %s ORDER BY r.reserved_at ASC LIMIT %d OFFSET %d`, base, size, offset)

	var reservations []models.Reservation
	if err := r.db.SelectContext(ctx, &reservations, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list reservations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reservations: %w", err)
	}
	return reservations, total, nil
}

// Cancel flips an active reservation to cancelled.
func (r *ReservationRepository) Cancel(ctx context.Context, id string) error {
	const query = `UPDATE reservations SET status = 'cancelled', updated_at = $2 WHERE id = $1 AND status = 'active'`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ExpiredContact links an expired reservation to the borrower's phone number.
type ExpiredContact struct {
	ReservationID string              `db:"reservation_id"`
	BookTitle     string              `db:"book_title"`
	BorrowerKind  models.BorrowerKind `db:"borrower_kind"`
	BorrowerID    string              `db:"borrower_id"`
	Phone         string              `db:"phone"`
}

// ExpireDue marks active reservations past their expiry as expired and
// returns contact rows for the borrowers affected.
func (r *ReservationRepository) ExpireDue(ctx context.Context, asOf time.Time) ([]ExpiredContact, error) {
	const query = `WITH expired AS (
            UPDATE reservations SET status = 'expired', updated_at = $1
            WHERE status = 'active' AND expires_at < $1
            RETURNING id, book_id, borrower_kind, borrower_id
        )
        SELECT e.id AS reservation_id, b.title AS book_title, e.borrower_kind, e.borrower_id,
               COALESCE(st.phone, sf.phone, '') AS phone
        FROM expired e
        JOIN books b ON b.id = e.book_id
        LEFT JOIN students st ON e.borrower_kind = 'student' AND st.id = e.borrower_id
        LEFT JOIN staff sf ON e.borrower_kind = 'staff' AND sf.id = e.borrower_id`
	var contacts []ExpiredContact
	if err := r.db.SelectContext(ctx, &contacts, query, asOf.UTC()); err != nil {
		return nil, fmt.Errorf("expire reservations: %w", err)
	}
	return contacts, nil
}

// convertOldestActiveReservation flips the oldest active reservation for the
// (book, borrower) pair to converted. A missing reservation is not an error.
func convertOldestActiveReservation(ctx context.Context, ext sqlx.ExtContext, bookID string, borrower models.Borrower) error {
	const query = `UPDATE reservations SET status = 'converted', updated_at = $4
        WHERE id = (
            SELECT id FROM reservations
            WHERE book_id = $1 AND borrower_kind = $2 AND borrower_id = $3 AND status = 'active'
            ORDER BY reserved_at ASC LIMIT 1
        )`
	if _, err := ext.ExecContext(ctx, query, bookID, borrower.Kind, borrower.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("convert reservation: %w", err)
	}
	return nil
}
