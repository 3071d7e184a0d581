package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/scolaris-app/biblio-api/internal/models"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
)

type penaltyRepository interface {
	FindByID(ctx context.Context, id string) (*models.Penalty, error)
	List(ctx context.Context, filter models.PenaltyFilter) ([]models.Penalty, int, error)
	MarkPaid(ctx context.Context, id, processedBy string, paidAt time.Time) error
	OutstandingTotal(ctx context.Context, borrower models.Borrower) (decimal.Decimal, error)
}

// PenaltyService covers the read and payment side of penalties. Rows are
// created exclusively by the return transaction in LoanService.
type PenaltyService struct {
	repo     penaltyRepository
	counters counterInvalidator
	logger   *zap.Logger
	now      func() time.Time
}

// NewPenaltyService constructs the penalty service. counters may be nil when
// no dashboard cache is configured.
func NewPenaltyService(repo penaltyRepository, counters counterInvalidator, logger *zap.Logger) *PenaltyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PenaltyService{repo: repo, counters: counters, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns a single penalty.
func (s *PenaltyService) Get(ctx context.Context, id string) (*models.Penalty, error) {
	penalty, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "penalty not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load penalty")
	}
	return penalty, nil
}

// List returns penalties and pagination metadata.
func (s *PenaltyService) List(ctx context.Context, filter models.PenaltyFilter) ([]models.Penalty, *models.Pagination, error) {
	penalties, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list penalties")
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
	return penalties, pagination, nil
}

// MarkPaid settles an unpaid penalty.
func (s *PenaltyService) MarkPaid(ctx context.Context, id, processedBy string) (*models.Penalty, error) {
	if err := s.repo.MarkPaid(ctx, id, processedBy, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "penalty not found or already paid")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark penalty paid")
	}
	penalty, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload penalty")
	}
	if s.counters != nil {
		s.counters.Invalidate(ctx)
	}
	s.logger.Info("penalty settled", zap.String("penalty_id", id), zap.String("processed_by", processedBy))
	return penalty, nil
}

// Outstanding sums the unpaid penalties held by a borrower.
func (s *PenaltyService) Outstanding(ctx context.Context, borrower models.Borrower) (decimal.Decimal, error) {
	if !borrower.Kind.Valid() {
		return decimal.Zero, appErrors.Clone(appErrors.ErrValidation, "unknown borrower kind")
	}
	total, err := s.repo.OutstandingTotal(ctx, borrower)
	if err != nil {
		return decimal.Zero, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum penalties")
	}
	return total, nil
}
