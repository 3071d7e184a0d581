package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scolaris-app/biblio-api/internal/models"
	"github.com/scolaris-app/biblio-api/internal/repository"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
	"github.com/scolaris-app/biblio-api/pkg/jobs"
)

type smsRepository interface {
	Create(ctx context.Context, msg *models.SMSMessage) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id, reason string) error
	ListPending(ctx context.Context, limit int) ([]models.SMSMessage, error)
}

type overdueLister interface {
	ListOverdueContacts(ctx context.Context, asOf time.Time) ([]repository.OverdueContact, error)
}

// SMSGateway delivers a single text message.
type SMSGateway interface {
	Send(ctx context.Context, phone, body string) error
}

// LogGateway writes messages to the log instead of a carrier. Used in
// development and as the fallback when no gateway is configured.
type LogGateway struct {
	logger *zap.Logger
}

// NewLogGateway constructs a LogGateway.
func NewLogGateway(logger *zap.Logger) *LogGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogGateway{logger: logger}
}

// Send logs the message and reports success.
func (g *LogGateway) Send(_ context.Context, phone, body string) error {
	g.logger.Info("sms (log gateway)", zap.String("phone", phone), zap.String("body", body))
	return nil
}

// NotificationService owns the SMS outbox: reminders are persisted as pending
// rows and delivered asynchronously by the dispatch queue.
type NotificationService struct {
	outbox  smsRepository
	loans   overdueLister
	gateway SMSGateway
	queue   *jobs.Queue
	logger  *zap.Logger
	now     func() time.Time
}

// NewNotificationService constructs the notification service. Call Start to
// begin dispatching.
func NewNotificationService(outbox smsRepository, loans overdueLister, gateway SMSGateway, logger *zap.Logger, queueCfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gateway == nil {
		gateway = NewLogGateway(logger)
	}
	s := &NotificationService{
		outbox:  outbox,
		loans:   loans,
		gateway: gateway,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	queueCfg.Logger = logger
	s.queue = jobs.NewQueue("sms-dispatch", s.dispatch, queueCfg)
	return s
}

// Start begins queue consumption.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the dispatch queue.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// QueueOverdueReminders persists one reminder per overdue loan whose borrower
// has a phone number and schedules delivery.
func (s *NotificationService) QueueOverdueReminders(ctx context.Context) (int, error) {
	contacts, err := s.loans.ListOverdueContacts(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list overdue loans")
	}
	queued := 0
	for _, contact := range contacts {
		msg := &models.SMSMessage{
			Kind:         models.SMSKindOverdueReminder,
			BorrowerKind: contact.BorrowerKind,
			BorrowerID:   contact.BorrowerID,
			Phone:        contact.Phone,
			Body: fmt.Sprintf("Rappel: le livre \"%s\" devait etre rendu le %s. Merci de le rapporter a la bibliotheque.",
				contact.BookTitle, contact.DueDate.Format("02/01/2006")),
		}
		if err := s.outbox.Create(ctx, msg); err != nil {
			s.logger.Warn("failed to persist overdue reminder", zap.String("loan_id", contact.LoanID), zap.Error(err))
			continue
		}
		s.enqueue(msg)
		queued++
	}
	return queued, nil
}

// QueueReservationExpired persists and schedules an expiry notice.
func (s *NotificationService) QueueReservationExpired(ctx context.Context, contact repository.ExpiredContact) {
	msg := &models.SMSMessage{
		Kind:         models.SMSKindReservationExpired,
		BorrowerKind: contact.BorrowerKind,
		BorrowerID:   contact.BorrowerID,
		Phone:        contact.Phone,
		Body:         fmt.Sprintf("Votre reservation pour \"%s\" a expire.", contact.BookTitle),
	}
	if err := s.outbox.Create(ctx, msg); err != nil {
		s.logger.Warn("failed to persist expiry notice", zap.String("reservation_id", contact.ReservationID), zap.Error(err))
		return
	}
	s.enqueue(msg)
}

// QueueDepth reports how many messages are waiting for dispatch.
func (s *NotificationService) QueueDepth() int {
	return s.queue.Depth()
}

// Outbox lists undelivered messages.
func (s *NotificationService) Outbox(ctx context.Context, limit int) ([]models.SMSMessage, error) {
	messages, err := s.outbox.ListPending(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list outbox")
	}
	return messages, nil
}

func (s *NotificationService) enqueue(msg *models.SMSMessage) {
	if err := s.queue.Enqueue(jobs.Job{ID: msg.ID, Type: msg.Kind, Payload: *msg}); err != nil {
		s.logger.Warn("sms dispatch queue full, message stays pending", zap.String("sms_id", msg.ID), zap.Error(err))
	}
}

func (s *NotificationService) dispatch(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(models.SMSMessage)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	if err := s.gateway.Send(ctx, msg.Phone, msg.Body); err != nil {
		if markErr := s.outbox.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
			s.logger.Warn("failed to record sms failure", zap.String("sms_id", msg.ID), zap.Error(markErr))
		}
		return err
	}
	if err := s.outbox.MarkSent(ctx, msg.ID, s.now()); err != nil {
		s.logger.Warn("failed to record sms delivery", zap.String("sms_id", msg.ID), zap.Error(err))
	}
	return nil
}
