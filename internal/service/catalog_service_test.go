package service

import (
	"context"
	"database/sql"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris-app/biblio-api/internal/models"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
)

type mockBookRepo struct {
	books map[string]models.Book
}

func (m *mockBookRepo) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	out := make([]models.Book, 0, len(m.books))
	for _, b := range m.books {
		if filter.AvailableOnly && (b.Status != models.BookStatusAvailable || b.AvailableCopies == 0) {
			continue
		}
		out = append(out, b)
	}
	return out, len(out), nil
}

func (m *mockBookRepo) FindByID(ctx context.Context, id string) (*models.Book, error) {
	if b, ok := m.books[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookRepo) Create(ctx context.Context, book *models.Book) error {
	book.ID = "b" + strconv.Itoa(len(m.books)+1)
	m.books[book.ID] = *book
	return nil
}

func (m *mockBookRepo) Update(ctx context.Context, book *models.Book) error {
	if _, ok := m.books[book.ID]; !ok {
		return sql.ErrNoRows
	}
	m.books[book.ID] = *book
	return nil
}

func TestCatalogServiceCreate(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.Book{}}
	svc := NewCatalogService(repo, nil, nil)

	book, err := svc.Create(context.Background(), CreateBookRequest{
		Title:       "Sous l'orage",
		Author:      "Seydou Badian",
		TotalCopies: 4,
	})
	require.NoError(t, err)
	// Every copy starts available.
	assert.Equal(t, 4, book.AvailableCopies)
	assert.Equal(t, models.BookStatusAvailable, book.Status)
	assert.Equal(t, "good", book.Condition)
}

func TestCatalogServiceCreateValidation(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.Book{}}
	svc := NewCatalogService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateBookRequest{Title: "Sans auteur", TotalCopies: 1})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	_, err = svc.Create(context.Background(), CreateBookRequest{Title: "T", Author: "A", TotalCopies: 0})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCatalogServiceUpdatePreservesCounters(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.Book{
		"b1": {ID: "b1", Title: "Ancien titre", Author: "A", TotalCopies: 5, AvailableCopies: 2, Status: models.BookStatusAvailable, Condition: "worn"},
	}}
	svc := NewCatalogService(repo, nil, nil)

	book, err := svc.Update(context.Background(), "b1", UpdateBookRequest{Title: "Nouveau titre", Author: "A"})
	require.NoError(t, err)
	assert.Equal(t, "Nouveau titre", book.Title)
	assert.Equal(t, 2, book.AvailableCopies)
	assert.Equal(t, 5, book.TotalCopies)
	assert.Equal(t, "worn", book.Condition)
}

func TestCatalogServiceUpdateUnknownBook(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.Book{}}
	svc := NewCatalogService(repo, nil, nil)

	_, err := svc.Update(context.Background(), "missing", UpdateBookRequest{Title: "T", Author: "A"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCatalogServiceListAvailableOnly(t *testing.T) {
	repo := &mockBookRepo{books: map[string]models.Book{
		"b1": {ID: "b1", Status: models.BookStatusAvailable, AvailableCopies: 1},
		"b2": {ID: "b2", Status: models.BookStatusAvailable, AvailableCopies: 0},
	}}
	svc := NewCatalogService(repo, nil, nil)

	books, pagination, err := svc.List(context.Background(), models.BookFilter{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "b1", books[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 20, pagination.PageSize)
}
