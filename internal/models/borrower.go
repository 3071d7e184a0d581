package models

import "fmt"

// BorrowerKind is the closed set of identities allowed to hold loans.
type BorrowerKind string

const (
	BorrowerKindStudent BorrowerKind = "student"
	BorrowerKindStaff   BorrowerKind = "staff"
)

// Valid reports whether the kind is one of the known variants.
func (k BorrowerKind) Valid() bool {
	return k == BorrowerKindStudent || k == BorrowerKindStaff
}

// Borrower identifies a student or staff member by kind plus id.
type Borrower struct {
	Kind BorrowerKind `db:"borrower_kind" json:"kind"`
	ID   string       `db:"borrower_id" json:"id"`
}

// String renders the borrower as kind:id for logs and errors.
func (b Borrower) String() string {
	return fmt.Sprintf("%s:%s", b.Kind, b.ID)
}

// BorrowerDetail carries the display name resolved from the underlying roster.
type BorrowerDetail struct {
	Borrower
	FullName string `db:"full_name" json:"full_name"`
	Active   bool   `db:"active" json:"active"`
}
