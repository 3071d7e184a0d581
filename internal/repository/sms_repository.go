package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/scolaris-app/biblio-api/internal/models"
)

// SMSRepository persists the outbox of text messages owed to borrowers.
type SMSRepository struct {
	db *sqlx.DB
}

// NewSMSRepository constructs an SMSRepository.
func NewSMSRepository(db *sqlx.DB) *SMSRepository {
	return &SMSRepository{db: db}
}

// Create inserts a pending outbox row.
func (r *SMSRepository) Create(ctx context.Context, msg *models.SMSMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Status == "" {
		msg.Status = models.SMSStatusPending
	}
	const query = `INSERT INTO sms_messages (id, kind, borrower_kind, borrower_id, phone, body, status, created_at)
        VALUES (:id, :kind, :borrower_kind, :borrower_id, :phone, :body, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create sms: %w", err)
	}
	return nil
}

// MarkSent flags the message as delivered.
func (r *SMSRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	const query = `UPDATE sms_messages SET status = 'sent', sent_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, sentAt); err != nil {
		return fmt.Errorf("mark sms sent: %w", err)
	}
	return nil
}

// MarkFailed records the gateway error on the message.
func (r *SMSRepository) MarkFailed(ctx context.Context, id, reason string) error {
	const query = `UPDATE sms_messages SET status = 'failed', error = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, reason); err != nil {
		return fmt.Errorf("mark sms failed: %w", err)
	}
	return nil
}

// ListPending returns undelivered messages, oldest first.
func (r *SMSRepository) ListPending(ctx context.Context, limit int) ([]models.SMSMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, kind, borrower_kind, borrower_id, phone, body, status, error, created_at, sent_at
        FROM sms_messages WHERE status = 'pending' ORDER BY created_at ASC LIMIT %d`, limit)
	var messages []models.SMSMessage
	if err := r.db.SelectContext(ctx, &messages, query); err != nil {
		return nil, fmt.Errorf("list pending sms: %w", err)
	}
	return messages, nil
}
