package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scolaris-app/biblio-api/internal/models"
	"github.com/scolaris-app/biblio-api/internal/repository"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
)

type mockLoanRepo struct {
	loans        map[string]models.LoanDetail
	activeCounts map[string]int
	created      []repository.CreateLoanParams
	returned     []repository.ReturnLoanParams
	createErr    error
	returnErr    error
	extendErr    error
}

func (m *mockLoanRepo) CreateLoan(ctx context.Context, params repository.CreateLoanParams) (*models.Loan, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, params)
	return &models.Loan{
		ID:           "l1",
		BookID:       params.BookID,
		BorrowerKind: params.Borrower.Kind,
		BorrowerID:   params.Borrower.ID,
		StartDate:    params.StartDate,
		DueDate:      params.DueDate,
		Status:       models.LoanStatusActive,
		ProcessedBy:  params.ProcessedBy,
	}, nil
}

func (m *mockLoanRepo) ReturnLoan(ctx context.Context, params repository.ReturnLoanParams) error {
	if m.returnErr != nil {
		return m.returnErr
	}
	m.returned = append(m.returned, params)
	return nil
}

func (m *mockLoanRepo) Extend(ctx context.Context, id string, newDueDate time.Time) error {
	return m.extendErr
}

func (m *mockLoanRepo) MarkLost(ctx context.Context, id, processedBy, notes string) error {
	if _, ok := m.loans[id]; !ok {
		return sql.ErrNoRows
	}
	return nil
}

func (m *mockLoanRepo) FindByID(ctx context.Context, id string) (*models.LoanDetail, error) {
	if detail, ok := m.loans[id]; ok {
		copied := detail
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLoanRepo) CountActiveByBorrower(ctx context.Context, borrower models.Borrower) (int, error) {
	return m.activeCounts[borrower.String()], nil
}

func (m *mockLoanRepo) List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, int, error) {
	details := make([]models.LoanDetail, 0, len(m.loans))
	for _, d := range m.loans {
		details = append(details, d)
	}
	return details, len(details), nil
}

type mockBorrowerRepo struct {
	borrowers map[string]models.BorrowerDetail
}

func (m *mockBorrowerRepo) Find(ctx context.Context, borrower models.Borrower) (*models.BorrowerDetail, error) {
	if detail, ok := m.borrowers[borrower.String()]; ok {
		return &detail, nil
	}
	return nil, sql.ErrNoRows
}

type fixedPolicy struct {
	policy models.LoanPolicy
}

func (f fixedPolicy) Current(ctx context.Context) models.LoanPolicy {
	return f.policy
}

type recordingInvalidator struct {
	calls int
}

func (r *recordingInvalidator) Invalidate(ctx context.Context) {
	r.calls++
}

func newLoanServiceForTest(loans *mockLoanRepo, borrowers *mockBorrowerRepo) *LoanService {
	svc := NewLoanService(loans, borrowers, fixedPolicy{policy: models.DefaultLoanPolicy()}, nil, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC) }
	return svc
}

func studentBorrowers() *mockBorrowerRepo {
	return &mockBorrowerRepo{borrowers: map[string]models.BorrowerDetail{
		"student:s1": {FullName: "Awa Diop", Active: true},
		"staff:t1":   {FullName: "M. Ndiaye", Active: true},
		"student:s2": {FullName: "Inactive Kid", Active: false},
	}}
}

func TestLoanServiceBorrowDefaultDuration(t *testing.T) {
	loans := &mockLoanRepo{activeCounts: map[string]int{}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	loan, err := svc.Borrow(context.Background(), BorrowRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
	}, "u1")
	require.NoError(t, err)

	require.Len(t, loans.created, 1)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, start, loans.created[0].StartDate)
	assert.Equal(t, start.AddDate(0, 0, 14), loans.created[0].DueDate)
	assert.Equal(t, "u1", loan.ProcessedBy)
}

func TestLoanServiceBorrowDurationBounds(t *testing.T) {
	loans := &mockLoanRepo{activeCounts: map[string]int{}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	for _, duration := range []int{-1, 91, 120} {
		_, err := svc.Borrow(context.Background(), BorrowRequest{
			BookID:       "b1",
			BorrowerKind: models.BorrowerKindStudent,
			BorrowerID:   "s1",
			DurationDays: duration,
		}, "u1")
		var appErr *appErrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, appErrors.ErrInvalidDuration.Code, appErr.Code)
	}

	// Boundary values are accepted.
	for _, duration := range []int{1, 90} {
		_, err := svc.Borrow(context.Background(), BorrowRequest{
			BookID:       "b1",
			BorrowerKind: models.BorrowerKindStudent,
			BorrowerID:   "s1",
			DurationDays: duration,
		}, "u1")
		require.NoError(t, err)
	}
}

func TestLoanServiceBorrowLimitPerKind(t *testing.T) {
	loans := &mockLoanRepo{activeCounts: map[string]int{
		"student:s1": 3,
		"staff:t1":   3,
	}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	_, err := svc.Borrow(context.Background(), BorrowRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
	}, "u1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrBorrowLimitExceeded.Code, appErr.Code)

	// The same count is under the staff ceiling.
	_, err = svc.Borrow(context.Background(), BorrowRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStaff,
		BorrowerID:   "t1",
	}, "u1")
	require.NoError(t, err)
}

func TestLoanServiceBorrowOneBelowStudentLimit(t *testing.T) {
	loans := &mockLoanRepo{activeCounts: map[string]int{"student:s1": 2}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	_, err := svc.Borrow(context.Background(), BorrowRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
	}, "u1")
	require.NoError(t, err)
	assert.Len(t, loans.created, 1)
}

func TestLoanServiceMutationsDropDashboardCounters(t *testing.T) {
	loans := &mockLoanRepo{
		activeCounts: map[string]int{},
		loans: map[string]models.LoanDetail{
			"l1": {Loan: models.Loan{
				ID:        "l1",
				BookID:    "b1",
				Status:    models.LoanStatusActive,
				StartDate: time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC),
				DueDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			}},
		},
	}
	counters := &recordingInvalidator{}
	svc := newLoanServiceForTest(loans, studentBorrowers())
	svc.counters = counters

	_, err := svc.Borrow(context.Background(), BorrowRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, counters.calls)

	_, err = svc.Return(context.Background(), "l1", ReturnRequest{}, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, counters.calls)

	// A rejected borrow leaves the cache alone.
	_, err = svc.Borrow(context.Background(), BorrowRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s2",
	}, "u1")
	require.Error(t, err)
	assert.Equal(t, 2, counters.calls)
}

func TestLoanServiceBorrowNoCopyAvailable(t *testing.T) {
	loans := &mockLoanRepo{activeCounts: map[string]int{}, createErr: repository.ErrNoAvailableCopy}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	_, err := svc.Borrow(context.Background(), BorrowRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
	}, "u1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrBookUnavailable.Code, appErr.Code)
}

func TestLoanServiceBorrowInactiveBorrower(t *testing.T) {
	loans := &mockLoanRepo{activeCounts: map[string]int{}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	_, err := svc.Borrow(context.Background(), BorrowRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s2",
	}, "u1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestLoanServiceReturnOnTime(t *testing.T) {
	loans := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{
			ID:      "l1",
			BookID:  "b1",
			Status:  models.LoanStatusActive,
			DueDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		}},
	}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	detail, err := svc.Return(context.Background(), "l1", ReturnRequest{}, "u1")
	require.NoError(t, err)

	require.Len(t, loans.returned, 1)
	assert.Nil(t, loans.returned[0].Penalty)
	assert.Equal(t, "good", loans.returned[0].Condition)
	assert.Equal(t, models.LoanStatusReturned, detail.Status)
	assert.True(t, detail.PenaltyAmount.IsZero())
}

func TestLoanServiceReturnLateCreatesPenalty(t *testing.T) {
	loans := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{
			ID:      "l1",
			BookID:  "b1",
			Status:  models.LoanStatusActive,
			DueDate: time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC),
		}},
	}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	detail, err := svc.Return(context.Background(), "l1", ReturnRequest{Condition: "worn"}, "u1")
	require.NoError(t, err)

	// 3 days late at the default 100/day rate.
	require.Len(t, loans.returned, 1)
	penalty := loans.returned[0].Penalty
	require.NotNil(t, penalty)
	assert.True(t, penalty.Amount.Equal(decimal.NewFromInt(300)), "got %s", penalty.Amount)
	assert.Equal(t, models.PenaltyStatusUnpaid, penalty.Status)
	assert.Equal(t, "worn", loans.returned[0].Condition)
	assert.True(t, detail.PenaltyAmount.Equal(decimal.NewFromInt(300)))
}

func TestLoanServiceReturnTwice(t *testing.T) {
	loans := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{
			ID:      "l1",
			Status:  models.LoanStatusActive,
			DueDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		}},
	}, returnErr: sql.ErrNoRows}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	_, err := svc.Return(context.Background(), "l1", ReturnRequest{}, "u1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrLoanNotFound.Code, appErr.Code)
}

func TestLoanServiceReturnClosedLoan(t *testing.T) {
	returnedAt := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	loans := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{ID: "l1", Status: models.LoanStatusReturned, ReturnedAt: &returnedAt}},
	}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	_, err := svc.Return(context.Background(), "l1", ReturnRequest{}, "u1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrLoanNotFound.Code, appErr.Code)
	assert.Empty(t, loans.returned)
}

func TestLoanServiceExtendBeforeStart(t *testing.T) {
	loans := &mockLoanRepo{loans: map[string]models.LoanDetail{
		"l1": {Loan: models.Loan{
			ID:        "l1",
			Status:    models.LoanStatusActive,
			StartDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			DueDate:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		}},
	}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	_, err := svc.Extend(context.Background(), "l1", ExtendRequest{
		NewDueDate: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestLoanServiceMarkLostUnknownLoan(t *testing.T) {
	loans := &mockLoanRepo{loans: map[string]models.LoanDetail{}}
	svc := newLoanServiceForTest(loans, studentBorrowers())

	err := svc.MarkLost(context.Background(), "missing", "u1", "")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrLoanNotFound.Code, appErr.Code)
	assert.False(t, errors.Is(err, sql.ErrNoRows))
}
