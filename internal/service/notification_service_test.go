package service

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris-app/biblio-api/internal/models"
	"github.com/scolaris-app/biblio-api/internal/repository"
	"github.com/scolaris-app/biblio-api/pkg/jobs"
)

type mockSMSRepo struct {
	messages  []models.SMSMessage
	createErr error
	sent      []string
	failed    map[string]string
}

func (m *mockSMSRepo) Create(ctx context.Context, msg *models.SMSMessage) error {
	if m.createErr != nil {
		return m.createErr
	}
	msg.ID = "sms-" + strconv.Itoa(len(m.messages)+1)
	msg.Status = models.SMSStatusPending
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *mockSMSRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	m.sent = append(m.sent, id)
	return nil
}

func (m *mockSMSRepo) MarkFailed(ctx context.Context, id, reason string) error {
	if m.failed == nil {
		m.failed = map[string]string{}
	}
	m.failed[id] = reason
	return nil
}

func (m *mockSMSRepo) ListPending(ctx context.Context, limit int) ([]models.SMSMessage, error) {
	return m.messages, nil
}

type mockOverdueLister struct {
	contacts []repository.OverdueContact
}

func (m *mockOverdueLister) ListOverdueContacts(ctx context.Context, asOf time.Time) ([]repository.OverdueContact, error) {
	return m.contacts, nil
}

type failingGateway struct {
	sent []string
	err  error
}

func (g *failingGateway) Send(ctx context.Context, phone, body string) error {
	if g.err != nil {
		return g.err
	}
	g.sent = append(g.sent, phone)
	return nil
}

func TestNotificationServiceQueueOverdueReminders(t *testing.T) {
	outbox := &mockSMSRepo{}
	loans := &mockOverdueLister{contacts: []repository.OverdueContact{
		{
			LoanID:       "l1",
			BookTitle:    "Une si longue lettre",
			BorrowerKind: models.BorrowerKindStudent,
			BorrowerID:   "s1",
			Phone:        "0612345678",
			DueDate:      time.Date(2026, 2, 24, 0, 0, 0, 0, time.UTC),
		},
	}}
	svc := NewNotificationService(outbox, loans, &failingGateway{}, nil, jobs.QueueConfig{})

	queued, err := svc.QueueOverdueReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	require.Len(t, outbox.messages, 1)
	msg := outbox.messages[0]
	assert.Equal(t, models.SMSKindOverdueReminder, msg.Kind)
	assert.Equal(t, "0612345678", msg.Phone)
	assert.Contains(t, msg.Body, "Une si longue lettre")
	assert.Contains(t, msg.Body, "24/02/2026")
}

func TestNotificationServiceQueueOverdueRemindersPersistFailure(t *testing.T) {
	outbox := &mockSMSRepo{createErr: assert.AnError}
	loans := &mockOverdueLister{contacts: []repository.OverdueContact{
		{LoanID: "l1", Phone: "0612345678"},
	}}
	svc := NewNotificationService(outbox, loans, &failingGateway{}, nil, jobs.QueueConfig{})

	queued, err := svc.QueueOverdueReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestNotificationServiceQueueReservationExpired(t *testing.T) {
	outbox := &mockSMSRepo{}
	svc := NewNotificationService(outbox, &mockOverdueLister{}, &failingGateway{}, nil, jobs.QueueConfig{})

	svc.QueueReservationExpired(context.Background(), repository.ExpiredContact{
		ReservationID: "r1",
		BookTitle:     "L'enfant noir",
		BorrowerKind:  models.BorrowerKindStudent,
		BorrowerID:    "s1",
		Phone:         "0612345678",
	})

	require.Len(t, outbox.messages, 1)
	assert.Equal(t, models.SMSKindReservationExpired, outbox.messages[0].Kind)
	assert.Contains(t, outbox.messages[0].Body, "L'enfant noir")
}

func TestNotificationServiceDispatch(t *testing.T) {
	outbox := &mockSMSRepo{}
	gateway := &failingGateway{}
	svc := NewNotificationService(outbox, &mockOverdueLister{}, gateway, nil, jobs.QueueConfig{})

	msg := models.SMSMessage{ID: "sms-1", Phone: "0612345678", Body: "Rappel"}
	err := svc.dispatch(context.Background(), jobs.Job{ID: msg.ID, Payload: msg})
	require.NoError(t, err)
	assert.Equal(t, []string{"0612345678"}, gateway.sent)
	assert.Equal(t, []string{"sms-1"}, outbox.sent)
}

func TestNotificationServiceDispatchGatewayFailure(t *testing.T) {
	outbox := &mockSMSRepo{}
	gateway := &failingGateway{err: assert.AnError}
	svc := NewNotificationService(outbox, &mockOverdueLister{}, gateway, nil, jobs.QueueConfig{})

	msg := models.SMSMessage{ID: "sms-1", Phone: "0612345678", Body: "Rappel"}
	err := svc.dispatch(context.Background(), jobs.Job{ID: msg.ID, Payload: msg})
	require.Error(t, err)
	assert.Equal(t, assert.AnError.Error(), outbox.failed["sms-1"])
}
