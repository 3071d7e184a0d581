package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris-app/biblio-api/internal/models"
	"github.com/scolaris-app/biblio-api/internal/repository"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
)

type mockReservationRepo struct {
	reservations map[string]models.Reservation
	activeByKey  map[string]models.Reservation
	created      []models.Reservation
	expired      []repository.ExpiredContact
	expireErr    error
}

func (m *mockReservationRepo) Create(ctx context.Context, reservation *models.Reservation) error {
	reservation.ID = "r1"
	m.created = append(m.created, *reservation)
	return nil
}

func (m *mockReservationRepo) FindByID(ctx context.Context, id string) (*models.Reservation, error) {
	if r, ok := m.reservations[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReservationRepo) FindActiveByBookAndBorrower(ctx context.Context, bookID string, borrower models.Borrower) (*models.Reservation, error) {
	if r, ok := m.activeByKey[bookID+"|"+borrower.String()]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReservationRepo) List(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, int, error) {
	out := make([]models.Reservation, 0, len(m.reservations))
	for _, r := range m.reservations {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (m *mockReservationRepo) Cancel(ctx context.Context, id string) error {
	r, ok := m.reservations[id]
	if !ok || r.Status != models.ReservationStatusActive {
		return sql.ErrNoRows
	}
	r.Status = models.ReservationStatusCancelled
	m.reservations[id] = r
	return nil
}

func (m *mockReservationRepo) ExpireDue(ctx context.Context, asOf time.Time) ([]repository.ExpiredContact, error) {
	return m.expired, m.expireErr
}

type mockBookFinder struct {
	books map[string]models.Book
}

func (m *mockBookFinder) FindByID(ctx context.Context, id string) (*models.Book, error) {
	if b, ok := m.books[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

type recordingNotifier struct {
	queued []repository.ExpiredContact
}

func (n *recordingNotifier) QueueReservationExpired(ctx context.Context, contact repository.ExpiredContact) {
	n.queued = append(n.queued, contact)
}

func newReservationServiceForTest(reservations *mockReservationRepo, books *mockBookFinder, notifier expiryNotifier) *ReservationService {
	svc := NewReservationService(reservations, books, studentBorrowers(), fixedPolicy{policy: models.DefaultLoanPolicy()}, notifier, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestReservationServiceReserve(t *testing.T) {
	reservations := &mockReservationRepo{activeByKey: map[string]models.Reservation{}}
	books := &mockBookFinder{books: map[string]models.Book{
		"b1": {ID: "b1", Status: models.BookStatusAvailable, AvailableCopies: 0},
	}}
	svc := newReservationServiceForTest(reservations, books, nil)

	reservation, err := svc.Reserve(context.Background(), ReserveRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ReservationStatusActive, reservation.Status)
	// Expiry window comes from the policy, 7 days by default.
	assert.Equal(t, reservation.ReservedAt.AddDate(0, 0, 7), reservation.ExpiresAt)
}

func TestReservationServiceReserveAvailableBook(t *testing.T) {
	reservations := &mockReservationRepo{activeByKey: map[string]models.Reservation{}}
	books := &mockBookFinder{books: map[string]models.Book{
		"b1": {ID: "b1", Status: models.BookStatusAvailable, AvailableCopies: 2},
	}}
	svc := newReservationServiceForTest(reservations, books, nil)

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, reservations.created)
}

func TestReservationServiceReserveDuplicate(t *testing.T) {
	reservations := &mockReservationRepo{activeByKey: map[string]models.Reservation{
		"b1|student:s1": {ID: "r0", Status: models.ReservationStatusActive},
	}}
	books := &mockBookFinder{books: map[string]models.Book{
		"b1": {ID: "b1", Status: models.BookStatusAvailable, AvailableCopies: 0},
	}}
	svc := newReservationServiceForTest(reservations, books, nil)

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		BookID:       "b1",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestReservationServiceReserveUnknownBook(t *testing.T) {
	reservations := &mockReservationRepo{activeByKey: map[string]models.Reservation{}}
	svc := newReservationServiceForTest(reservations, &mockBookFinder{books: map[string]models.Book{}}, nil)

	_, err := svc.Reserve(context.Background(), ReserveRequest{
		BookID:       "missing",
		BorrowerKind: models.BorrowerKindStudent,
		BorrowerID:   "s1",
	})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReservationServiceCancelInactive(t *testing.T) {
	reservations := &mockReservationRepo{reservations: map[string]models.Reservation{
		"r1": {ID: "r1", Status: models.ReservationStatusConverted},
	}}
	svc := newReservationServiceForTest(reservations, &mockBookFinder{}, nil)

	err := svc.Cancel(context.Background(), "r1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestReservationServiceExpireDueQueuesNotifications(t *testing.T) {
	reservations := &mockReservationRepo{expired: []repository.ExpiredContact{
		{ReservationID: "r1", BookTitle: "Une si longue lettre", Phone: "0612345678"},
		{ReservationID: "r2", BookTitle: "L'enfant noir", Phone: ""},
	}}
	notifier := &recordingNotifier{}
	svc := newReservationServiceForTest(reservations, &mockBookFinder{}, notifier)

	count, err := svc.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	// Only the contact with a phone number is queued.
	require.Len(t, notifier.queued, 1)
	assert.Equal(t, "r1", notifier.queued[0].ReservationID)
}
