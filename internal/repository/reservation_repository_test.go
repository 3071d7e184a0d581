package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris-app/biblio-api/internal/models"
)

func TestReservationRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectExec("INSERT INTO reservations").
		WillReturnResult(sqlmock.NewResult(1, 1))

	reservation := &models.Reservation{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
		ReservedAt:   time.Now().UTC(),
		ExpiresAt:    time.Now().UTC().AddDate(0, 0, 7),
		Status:       models.ReservationStatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), reservation))
	assert.NotEmpty(t, reservation.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepositoryFindActiveByBookAndBorrower(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	rows := sqlmock.NewRows([]string{"id", "book_id", "borrower_kind", "borrower_id", "reserved_at", "expires_at", "status", "created_at", "updated_at"}).
		AddRow("r1", "b1", "student", "s1", time.Now(), time.Now().AddDate(0, 0, 7), "active", time.Now(), time.Now())
	mock.ExpectQuery("SELECT id, book_id").
		WithArgs("b1", models.BorrowerKindStudent, "s1").
		WillReturnRows(rows)

	reservation, err := repo.FindActiveByBookAndBorrower(context.Background(), "b1", models.Borrower{Kind: models.BorrowerKindStudent, ID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "r1", reservation.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepositoryCancelNotActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	mock.ExpectExec("UPDATE reservations").
		WithArgs("r1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Cancel(context.Background(), "r1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepositoryExpireDue(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReservationRepository(db)

	rows := sqlmock.NewRows([]string{"reservation_id", "book_title", "borrower_kind", "borrower_id", "phone"}).
		AddRow("r1", "Le Petit Prince", "student", "s1", "0612345678")
	mock.ExpectQuery("WITH expired AS").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	contacts, err := repo.ExpireDue(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "r1", contacts[0].ReservationID)
	assert.Equal(t, "0612345678", contacts[0].Phone)
	assert.NoError(t, mock.ExpectationsWereMet())
}
