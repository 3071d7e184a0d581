package models

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusExpired   ReservationStatus = "expired"
	ReservationStatusConverted ReservationStatus = "converted"
	ReservationStatusCancelled ReservationStatus = "cancelled"
)

// Reservation holds a borrower's claim on a currently unavailable book.
type Reservation struct {
	ID           string            `db:"id" json:"id"`
	BookID       string            `db:"book_id" json:"book_id"`
	BorrowerKind BorrowerKind      `db:"borrower_kind" json:"borrower_kind"`
	BorrowerID   string            `db:"borrower_id" json:"borrower_id"`
	ReservedAt   time.Time         `db:"reserved_at" json:"reserved_at"`
	ExpiresAt    time.Time         `db:"expires_at" json:"expires_at"`
	Status       ReservationStatus `db:"status" json:"status"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// Borrower returns the tagged borrower identity of the reservation.
func (r Reservation) Borrower() Borrower {
	return Borrower{Kind: r.BorrowerKind, ID: r.BorrowerID}
}

// ReservationFilter encapsulates allowed search parameters for listing reservations.
type ReservationFilter struct {
	BookID       string
	BorrowerKind *BorrowerKind
	BorrowerID   string
	Status       *ReservationStatus
	Page         int
	PageSize     int
}
