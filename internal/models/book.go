package models

import "time"

// BookStatus enumerates the lifecycle states of a catalog entry.
type BookStatus string

const (
	BookStatusAvailable BookStatus = "available"
	BookStatusBorrowed  BookStatus = "borrowed"
	BookStatusLost      BookStatus = "lost"
)

// Book represents a title held by the library with its copy counters.
type Book struct {
	ID              string     `db:"id" json:"id"`
	Title           string     `db:"title" json:"title"`
	Author          string     `db:"author" json:"author"`
	ISBN            string     `db:"isbn" json:"isbn"`
	TotalCopies     int        `db:"total_copies" json:"total_copies"`
	AvailableCopies int        `db:"available_copies" json:"available_copies"`
	Status          BookStatus `db:"status" json:"status"`
	Condition       string     `db:"condition" json:"condition"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// BookFilter encapsulates allowed search parameters for listing books.
type BookFilter struct {
	Search        string
	Status        *BookStatus
	AvailableOnly bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}
