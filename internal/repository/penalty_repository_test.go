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

func TestPenaltyRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPenaltyRepository(db)

	rows := sqlmock.NewRows([]string{"id", "loan_id", "kind", "amount", "description", "status", "processed_by", "created_at", "paid_at"}).
		AddRow("p1", "l1", "late-return", "300", "late return: 3 day(s) past due", "unpaid", "u1", time.Now(), nil)
	mock.ExpectQuery("SELECT p.id, p.loan_id").
		WithArgs("l1").
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("l1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	penalties, total, err := repo.List(context.Background(), models.PenaltyFilter{LoanID: "l1"})
	require.NoError(t, err)
	assert.Len(t, penalties, 1)
	assert.Equal(t, 1, total)
	assert.True(t, penalties[0].Amount.Equal(decimal.NewFromInt(300)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPenaltyRepositoryMarkPaidAlreadyPaid(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPenaltyRepository(db)

	mock.ExpectExec("UPDATE penalties").
		WithArgs("p1", "u1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkPaid(context.Background(), "p1", "u1", time.Now().UTC())
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPenaltyRepositoryOutstandingTotal(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPenaltyRepository(db)

	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(models.BorrowerKindStudent, "s1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow("450"))

	total, err := repo.OutstandingTotal(context.Background(), models.Borrower{Kind: models.BorrowerKindStudent, ID: "s1"})
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(450)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
