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

// ErrNoAvailableCopy is returned when the conditional availability decrement
// matches no row, meaning every copy is out or the book is not lendable.
var ErrNoAvailableCopy = fmt.Errorf("no available copy")

// BookRepository manages persistence for catalog entries.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs a BookRepository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// List returns books matching the provided filters.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	base := "FROM books b"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(b.title) LIKE $%d OR LOWER(b.author) LIKE $%d OR b.isbn LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.AvailableOnly {
		conditions = append(conditions, "b.status = 'available' AND b.available_copies > 0")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"title":      "b.title",
		"author":     "b.author",
		"created_at": "b.created_at",
	}
	if sortBy == "" {
		sortBy = "title"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "b.title"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT b.id, b.title, b.author, b.isbn, b.total_copies, b.available_copies, b.status, b.condition, b.created_at, b.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var books []models.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}
	return books, total, nil
}

// FindByID fetches a book by ID.
func (r *BookRepository) FindByID(ctx context.Context, id string) (*models.Book, error) {
	const query = `SELECT id, title, author, isbn, total_copies, available_copies, status, condition, created_at, updated_at
        FROM books WHERE id = $1`
	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, id); err != nil {
		return nil, err
	}
	return &book, nil
}

// Create inserts a new catalog entry.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	const query = `INSERT INTO books (id, title, author, isbn, total_copies, available_copies, status, condition, created_at, updated_at)
        VALUES (:id, :title, :author, :isbn, :total_copies, :available_copies, :status, :condition, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// Update modifies the descriptive fields of a book. Copy counters are owned by
// the loan ledger and are not touched here.
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	book.UpdatedAt = time.Now().UTC()
	const query = `UPDATE books SET title = :title, author = :author, isbn = :isbn, condition = :condition, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// DecrementAvailability atomically claims one copy of the book. The guard on
// the counter and status makes two concurrent borrows of the last copy
// impossible: exactly one UPDATE matches.
func (r *BookRepository) DecrementAvailability(ctx context.Context, id string) error {
	return decrementBookAvailability(ctx, r.db, id)
}

// IncrementAvailability releases one copy and records its reported condition.
func (r *BookRepository) IncrementAvailability(ctx context.Context, id, condition string) error {
	return incrementBookAvailability(ctx, r.db, id, condition)
}

func decrementBookAvailability(ctx context.Context, ext sqlx.ExtContext, id string) error {
	const query = `UPDATE books
        SET available_copies = available_copies - 1,
            status = CASE WHEN available_copies - 1 = 0 THEN 'borrowed' ELSE status END,
            updated_at = $2
        WHERE id = $1 AND status = 'available' AND available_copies > 0`
	res, err := ext.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decrement book availability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement book availability: %w", err)
	}
	if affected == 0 {
		return ErrNoAvailableCopy
	}
	return nil
}

func incrementBookAvailability(ctx context.Context, ext sqlx.ExtContext, id, condition string) error {
	const query = `UPDATE books
        SET available_copies = available_copies + 1,
            status = 'available',
            condition = $2,
            updated_at = $3
        WHERE id = $1 AND available_copies < total_copies`
	res, err := ext.ExecContext(ctx, query, id, condition, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment book availability: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment book availability: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
