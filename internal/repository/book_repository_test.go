package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris-app/biblio-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBookRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "author", "isbn", "total_copies", "available_copies", "status", "condition", "created_at", "updated_at"}).
		AddRow("b1", "Le Petit Prince", "Saint-Exupery", "978", 3, 2, "available", "good", time.Now(), time.Now())
	mock.ExpectQuery("SELECT b.id, b.title").WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	books, total, err := repo.List(context.Background(), models.BookFilter{})
	require.NoError(t, err)
	assert.Len(t, books, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec("INSERT INTO books").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	book := &models.Book{Title: "Le Petit Prince", Author: "Saint-Exupery", TotalCopies: 3, AvailableCopies: 3, Status: models.BookStatusAvailable, Condition: "good"}
	err := repo.Create(context.Background(), book)
	require.NoError(t, err)
	assert.NotEmpty(t, book.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryDecrementAvailability(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec("UPDATE books").
		WithArgs("b1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DecrementAvailability(context.Background(), "b1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryDecrementAvailabilityNoCopy(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	// Conditional update matches no row when every copy is already out.
	mock.ExpectExec("UPDATE books").
		WithArgs("b1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DecrementAvailability(context.Background(), "b1")
	assert.ErrorIs(t, err, ErrNoAvailableCopy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookRepositoryIncrementAvailabilityAtCap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec("UPDATE books").
		WithArgs("b1", "good", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementAvailability(context.Background(), "b1", "good")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
