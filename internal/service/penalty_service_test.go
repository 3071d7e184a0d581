package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris-app/biblio-api/internal/models"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
)

type mockPenaltyRepo struct {
	penalties   map[string]models.Penalty
	outstanding decimal.Decimal
}

func (m *mockPenaltyRepo) FindByID(ctx context.Context, id string) (*models.Penalty, error) {
	if p, ok := m.penalties[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPenaltyRepo) List(ctx context.Context, filter models.PenaltyFilter) ([]models.Penalty, int, error) {
	out := make([]models.Penalty, 0, len(m.penalties))
	for _, p := range m.penalties {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockPenaltyRepo) MarkPaid(ctx context.Context, id, processedBy string, paidAt time.Time) error {
	p, ok := m.penalties[id]
	if !ok || p.Status != models.PenaltyStatusUnpaid {
		return sql.ErrNoRows
	}
	p.Status = models.PenaltyStatusPaid
	p.PaidAt = &paidAt
	p.ProcessedBy = processedBy
	m.penalties[id] = p
	return nil
}

func (m *mockPenaltyRepo) OutstandingTotal(ctx context.Context, borrower models.Borrower) (decimal.Decimal, error) {
	return m.outstanding, nil
}

func TestPenaltyServiceMarkPaid(t *testing.T) {
	repo := &mockPenaltyRepo{penalties: map[string]models.Penalty{
		"p1": {ID: "p1", Amount: decimal.NewFromInt(300), Status: models.PenaltyStatusUnpaid},
	}}
	svc := NewPenaltyService(repo, nil, nil)

	penalty, err := svc.MarkPaid(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PenaltyStatusPaid, penalty.Status)
	assert.Equal(t, "u1", penalty.ProcessedBy)
	require.NotNil(t, penalty.PaidAt)
}

func TestPenaltyServiceMarkPaidDropsDashboardCounters(t *testing.T) {
	repo := &mockPenaltyRepo{penalties: map[string]models.Penalty{
		"p1": {ID: "p1", Amount: decimal.NewFromInt(300), Status: models.PenaltyStatusUnpaid},
	}}
	counters := &recordingInvalidator{}
	svc := NewPenaltyService(repo, counters, nil)

	_, err := svc.MarkPaid(context.Background(), "p1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, counters.calls)

	// A failed payment leaves the cache alone.
	_, err = svc.MarkPaid(context.Background(), "p1", "u1")
	require.Error(t, err)
	assert.Equal(t, 1, counters.calls)
}

func TestPenaltyServiceMarkPaidTwice(t *testing.T) {
	repo := &mockPenaltyRepo{penalties: map[string]models.Penalty{
		"p1": {ID: "p1", Status: models.PenaltyStatusPaid},
	}}
	svc := NewPenaltyService(repo, nil, nil)

	_, err := svc.MarkPaid(context.Background(), "p1", "u1")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestPenaltyServiceOutstanding(t *testing.T) {
	repo := &mockPenaltyRepo{outstanding: decimal.NewFromInt(450)}
	svc := NewPenaltyService(repo, nil, nil)

	total, err := svc.Outstanding(context.Background(), models.Borrower{Kind: models.BorrowerKindStudent, ID: "s1"})
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(450)))
}

func TestPenaltyServiceOutstandingUnknownKind(t *testing.T) {
	svc := NewPenaltyService(&mockPenaltyRepo{}, nil, nil)

	_, err := svc.Outstanding(context.Background(), models.Borrower{Kind: "parent", ID: "x"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
