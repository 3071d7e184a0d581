package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/scolaris-app/biblio-api/internal/models"
	"github.com/scolaris-app/biblio-api/internal/repository"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
)

type loanRepository interface {
	CreateLoan(ctx context.Context, params repository.CreateLoanParams) (*models.Loan, error)
	ReturnLoan(ctx context.Context, params repository.ReturnLoanParams) error
	Extend(ctx context.Context, id string, newDueDate time.Time) error
	MarkLost(ctx context.Context, id, processedBy, notes string) error
	FindByID(ctx context.Context, id string) (*models.LoanDetail, error)
	CountActiveByBorrower(ctx context.Context, borrower models.Borrower) (int, error)
	List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, int, error)
}

type borrowerRepository interface {
	Find(ctx context.Context, borrower models.Borrower) (*models.BorrowerDetail, error)
}

type policyProvider interface {
	Current(ctx context.Context) models.LoanPolicy
}

// counterInvalidator drops cached aggregate counters after a mutation that
// moves them. Satisfied by DashboardService.
type counterInvalidator interface {
	Invalidate(ctx context.Context)
}

// BorrowRequest holds payload for creating a loan.
type BorrowRequest struct {
	BookID       string              `json:"book_id" validate:"required"`
	BorrowerKind models.BorrowerKind `json:"borrower_kind" validate:"required"`
	BorrowerID   string              `json:"borrower_id" validate:"required"`
	DurationDays int                 `json:"duration_days"`
	Notes        string              `json:"notes"`
}

// ReturnRequest holds payload for closing a loan.
type ReturnRequest struct {
	Condition string `json:"condition"`
	Notes     string `json:"notes"`
}

// ExtendRequest holds payload for moving a due date.
type ExtendRequest struct {
	NewDueDate time.Time `json:"new_due_date" validate:"required"`
}

// LoanService enforces borrowing eligibility and drives the loan lifecycle.
type LoanService struct {
	loans     loanRepository
	borrowers borrowerRepository
	policy    policyProvider
	counters  counterInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewLoanService constructs the loan service. counters may be nil when no
// dashboard cache is configured.
func NewLoanService(loans loanRepository, borrowers borrowerRepository, policy policyProvider, counters counterInvalidator, validate *validator.Validate, logger *zap.Logger) *LoanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoanService{
		loans:     loans,
		borrowers: borrowers,
		policy:    policy,
		counters:  counters,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *LoanService) dropCounters(ctx context.Context) {
	if s.counters != nil {
		s.counters.Invalidate(ctx)
	}
}

// Borrow creates a loan for the given borrower.
//
// Eligibility is checked first (duration bounds, roster membership, borrow
// limit) and the availability claim itself is a conditional update inside the
// repository transaction, so two borrowers racing for the last copy cannot
// both win.
func (s *LoanService) Borrow(ctx context.Context, req BorrowRequest, processedBy string) (*models.Loan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid borrow payload")
	}
	if !req.BorrowerKind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown borrower kind")
	}

	policy := s.policy.Current(ctx)
	duration := req.DurationDays
	if duration == 0 {
		duration = policy.DefaultDurationDays
	}
	if duration < models.MinLoanDurationDays || duration > models.MaxLoanDurationDays {
		return nil, appErrors.Clone(appErrors.ErrInvalidDuration, "")
	}

	borrower := models.Borrower{Kind: req.BorrowerKind, ID: req.BorrowerID}
	detail, err := s.borrowers.Find(ctx, borrower)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "borrower not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve borrower")
	}
	if !detail.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "borrower is inactive")
	}

	active, err := s.loans.CountActiveByBorrower(ctx, borrower)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active loans")
	}
	if active >= policy.MaxActive(borrower.Kind) {
		return nil, appErrors.Clone(appErrors.ErrBorrowLimitExceeded, "")
	}

	start := s.now().Truncate(24 * time.Hour)
	loan, err := s.loans.CreateLoan(ctx, repository.CreateLoanParams{
		BookID:      req.BookID,
		Borrower:    borrower,
		StartDate:   start,
		DueDate:     start.AddDate(0, 0, duration),
		ProcessedBy: processedBy,
		Notes:       req.Notes,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNoAvailableCopy) {
			return nil, appErrors.Clone(appErrors.ErrBookUnavailable, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create loan")
	}

	s.dropCounters(ctx)
	s.logger.Info("loan created",
		zap.String("loan_id", loan.ID),
		zap.String("book_id", loan.BookID),
		zap.String("borrower", borrower.String()),
		zap.Time("due_date", loan.DueDate),
	)
	return loan, nil
}

// Return closes an active loan, computing the late penalty with today as the
// actual return date. The ledger update, catalog release and penalty insert
// commit or roll back together.
func (s *LoanService) Return(ctx context.Context, loanID string, req ReturnRequest, processedBy string) (*models.LoanDetail, error) {
	detail, err := s.loans.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrLoanNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	if detail.Status != models.LoanStatusActive {
		return nil, appErrors.Clone(appErrors.ErrLoanNotFound, "loan is not active")
	}

	returnedAt := s.now()
	policy := s.policy.Current(ctx)
	daysLate := DaysLate(detail.DueDate, returnedAt)
	amount := LateReturnAmount(daysLate, policy.PenaltyRatePerDay)

	var penalty *models.Penalty
	if amount.IsPositive() {
		penalty = &models.Penalty{
			LoanID:      detail.ID,
			Kind:        models.PenaltyKindLateReturn,
			Amount:      amount,
			Description: lateReturnDescription(daysLate),
			Status:      models.PenaltyStatusUnpaid,
			ProcessedBy: processedBy,
		}
	}

	condition := req.Condition
	if condition == "" {
		condition = "good"
	}
	err = s.loans.ReturnLoan(ctx, repository.ReturnLoanParams{
		LoanID:      loanID,
		ReturnedAt:  returnedAt,
		Condition:   condition,
		Notes:       req.Notes,
		ProcessedBy: processedBy,
		Penalty:     penalty,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrLoanNotFound, "loan already returned")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to return loan")
	}

	s.dropCounters(ctx)
	s.logger.Info("loan returned",
		zap.String("loan_id", loanID),
		zap.Int("days_late", daysLate),
		zap.String("penalty", amount.String()),
	)

	detail.Status = models.LoanStatusReturned
	detail.ReturnedAt = &returnedAt
	detail.PenaltyAmount = amount
	detail.Notes = req.Notes
	detail.ProcessedBy = processedBy
	return detail, nil
}

// Extend replaces the due date of an active loan. The new date may not
// precede the loan start; beyond that it is applied as requested.
func (s *LoanService) Extend(ctx context.Context, loanID string, req ExtendRequest) (*models.LoanDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid extend payload")
	}
	detail, err := s.loans.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrLoanNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	if detail.Status != models.LoanStatusActive {
		return nil, appErrors.Clone(appErrors.ErrLoanNotFound, "loan is not active")
	}
	if req.NewDueDate.Before(detail.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "due date precedes loan start")
	}
	if err := s.loans.Extend(ctx, loanID, req.NewDueDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrLoanNotFound, "loan is not active")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to extend loan")
	}
	s.dropCounters(ctx)
	detail.DueDate = req.NewDueDate
	return detail, nil
}

// MarkLost flags an active loan as lost. Terminal: no catalog release, no
// penalty, by decision of the librarian processing the report.
func (s *LoanService) MarkLost(ctx context.Context, loanID, processedBy, notes string) error {
	if err := s.loans.MarkLost(ctx, loanID, processedBy, notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrLoanNotFound, "")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark loan lost")
	}
	s.dropCounters(ctx)
	s.logger.Warn("loan marked lost", zap.String("loan_id", loanID), zap.String("processed_by", processedBy))
	return nil
}

// Get returns a loan with book and borrower context.
func (s *LoanService) Get(ctx context.Context, id string) (*models.LoanDetail, error) {
	detail, err := s.loans.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	return detail, nil
}

// List returns loans and pagination metadata.
func (s *LoanService) List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, *models.Pagination, error) {
	loans, total, err := s.loans.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return loans, pagination, nil
}

func lateReturnDescription(daysLate int) string {
	return fmt.Sprintf("late return: %d day(s) past due", daysLate)
}
