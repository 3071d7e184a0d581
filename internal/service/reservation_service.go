package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/scolaris-app/biblio-api/internal/models"
	"github.com/scolaris-app/biblio-api/internal/repository"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
)

type reservationRepository interface {
	Create(ctx context.Context, reservation *models.Reservation) error
	FindByID(ctx context.Context, id string) (*models.Reservation, error)
	FindActiveByBookAndBorrower(ctx context.Context, bookID string, borrower models.Borrower) (*models.Reservation, error)
	List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error)
	Cancel(ctx context.Context, id string) error
	ExpireDue(ctx context.Context, asOf time.Time) ([]repository.ExpiredContact, error)
}

type reservationBookRepository interface {
	FindByID(ctx context.Context, id string) (*models.Book, error)
}

type expiryNotifier interface {
	QueueReservationExpired(ctx context.Context, contact repository.ExpiredContact)
}

// ReserveRequest holds payload for placing a reservation.
type ReserveRequest struct {
	BookID       string              `json:"book_id" validate:"required"`
	BorrowerKind models.BorrowerKind `json:"borrower_kind" validate:"required"`
	BorrowerID   string              `json:"borrower_id" validate:"required"`
}

// ReservationService manages claims on unavailable books.
type ReservationService struct {
	reservations reservationRepository
	books        reservationBookRepository
	borrowers    borrowerRepository
	policy       policyProvider
	notifier     expiryNotifier
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewReservationService constructs the reservation service.
func NewReservationService(reservations reservationRepository, books reservationBookRepository, borrowers borrowerRepository, policy policyProvider, notifier expiryNotifier, validate *validator.Validate, logger *zap.Logger) *ReservationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReservationService{
		reservations: reservations,
		books:        books,
		borrowers:    borrowers,
		policy:       policy,
		notifier:     notifier,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Reserve places a claim on a book that currently has no free copy. Borrowers
// with a copy in hand are expected to borrow, not reserve, so an available
// book rejects the request.
func (s *ReservationService) Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reservation payload")
	}
	if !req.BorrowerKind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown borrower kind")
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

	book, err := s.books.FindByID(ctx, req.BookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	if book.Status == models.BookStatusAvailable && book.AvailableCopies > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "book is available, borrow it instead")
	}

	if existing, err := s.reservations.FindActiveByBookAndBorrower(ctx, req.BookID, borrower); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "borrower already holds an active reservation for this book")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check reservations")
	}

	policy := s.policy.Current(ctx)
	now := s.now()
	reservation := &models.Reservation{
		BookID:       req.BookID,
		BorrowerKind: req.BorrowerKind,
		BorrowerID:   req.BorrowerID,
		ReservedAt:   now,
		ExpiresAt:    now.AddDate(0, 0, policy.ReservationWindowDays),
		Status:       models.ReservationStatusActive,
	}
	if err := s.reservations.Create(ctx, reservation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reservation")
	}
	s.logger.Info("reservation created",
		zap.String("reservation_id", reservation.ID),
		zap.String("book_id", reservation.BookID),
		zap.String("borrower", borrower.String()),
	)
	return reservation, nil
}

// Cancel withdraws an active reservation.
func (s *ReservationService) Cancel(ctx context.Context, id string) error {
	if err := s.reservations.Cancel(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "reservation not found or not active")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel reservation")
	}
	return nil
}

// Get returns a single reservation.
func (s *ReservationService) Get(ctx context.Context, id string) (*models.Reservation, error) {
	reservation, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "reservation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reservation")
	}
	return reservation, nil
}

// List returns reservations and pagination metadata.
func (s *ReservationService) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, *models.Pagination, error) {
	reservations, total, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reservations")
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
	return reservations, pagination, nil
}

// ExpireDue sweeps active reservations past their expiry and queues a text
// message for each affected borrower. Safe to run repeatedly.
func (s *ReservationService) ExpireDue(ctx context.Context) (int, error) {
	contacts, err := s.reservations.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire reservations")
	}
	for _, contact := range contacts {
		if s.notifier != nil && contact.Phone != "" {
			s.notifier.QueueReservationExpired(ctx, contact)
		}
	}
	if len(contacts) > 0 {
		s.logger.Info("reservations expired", zap.Int("count", len(contacts)))
	}
	return len(contacts), nil
}
