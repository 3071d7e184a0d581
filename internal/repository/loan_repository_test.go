package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris-app/biblio-api/internal/models"
)

func TestLoanRepositoryCreateLoan(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE books").
		WithArgs("b1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO loans").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`(?s)UPDATE reservations SET status = 'converted'.*status = 'active'.*ORDER BY reserved_at ASC LIMIT 1`).
		WithArgs("b1", models.BorrowerKindStudent, "s1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	loan, err := repo.CreateLoan(context.Background(), CreateLoanParams{
		BookID:      "b1",
		Borrower:    models.Borrower{Kind: models.BorrowerKindStudent, ID: "s1"},
		StartDate:   start,
		DueDate:     start.AddDate(0, 0, 14),
		ProcessedBy: "u1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, loan.ID)
	assert.Equal(t, models.LoanStatusActive, loan.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryCreateLoanNoCopyRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE books").
		WithArgs("b1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.CreateLoan(context.Background(), CreateLoanParams{
		BookID:   "b1",
		Borrower: models.Borrower{Kind: models.BorrowerKindStudent, ID: "s1"},
	})
	assert.ErrorIs(t, err, ErrNoAvailableCopy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryReturnLoanWithPenalty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE loans").
		WillReturnRows(sqlmock.NewRows([]string{"book_id"}).AddRow("b1"))
	mock.ExpectExec("UPDATE books").
		WithArgs("b1", "good", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO penalties").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReturnLoan(context.Background(), ReturnLoanParams{
		LoanID:      "l1",
		ReturnedAt:  time.Now().UTC(),
		Condition:   "good",
		ProcessedBy: "u1",
		Penalty: &models.Penalty{
			LoanID: "l1",
			Kind:   models.PenaltyKindLateReturn,
			Amount: decimal.NewFromInt(300),
			Status: models.PenaltyStatusUnpaid,
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryReturnLoanAlreadyClosed(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	// Second return: the status guard matches no row, nothing else runs.
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE loans").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.ReturnLoan(context.Background(), ReturnLoanParams{LoanID: "l1", ReturnedAt: time.Now().UTC(), Condition: "good"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryReturnLoanPenaltyFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE loans").
		WillReturnRows(sqlmock.NewRows([]string{"book_id"}).AddRow("b1"))
	mock.ExpectExec("UPDATE books").
		WithArgs("b1", "good", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO penalties").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	err := repo.ReturnLoan(context.Background(), ReturnLoanParams{
		LoanID:     "l1",
		ReturnedAt: time.Now().UTC(),
		Condition:  "good",
		Penalty:    &models.Penalty{LoanID: "l1", Amount: decimal.NewFromInt(100), Status: models.PenaltyStatusUnpaid},
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryCountActiveByBorrower(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(models.BorrowerKindStudent, "s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActiveByBorrower(context.Background(), models.Borrower{Kind: models.BorrowerKindStudent, ID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoanRepositoryExtendNotActive(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLoanRepository(db)

	mock.ExpectExec("UPDATE loans").
		WithArgs("l1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Extend(context.Background(), "l1", time.Now().UTC().AddDate(0, 0, 7))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
