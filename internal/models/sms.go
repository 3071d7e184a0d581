package models

import "time"

// SMSStatus enumerates the delivery states of an outbound message.
type SMSStatus string

const (
	SMSStatusPending SMSStatus = "pending"
	SMSStatusSent    SMSStatus = "sent"
	SMSStatusFailed  SMSStatus = "failed"
)

// SMS kinds produced by the reminder pipeline.
const (
	SMSKindOverdueReminder    = "overdue-reminder"
	SMSKindReservationExpired = "reservation-expired"
)

// SMSMessage is an outbox row for a text message owed to a borrower.
type SMSMessage struct {
	ID           string       `db:"id" json:"id"`
	Kind         string       `db:"kind" json:"kind"`
	BorrowerKind BorrowerKind `db:"borrower_kind" json:"borrower_kind"`
	BorrowerID   string       `db:"borrower_id" json:"borrower_id"`
	Phone        string       `db:"phone" json:"phone"`
	Body         string       `db:"body" json:"body"`
	Status       SMSStatus    `db:"status" json:"status"`
	Error        *string      `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	SentAt       *time.Time   `db:"sent_at" json:"sent_at,omitempty"`
}
