package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scolaris-app/biblio-api/internal/models"
)

func TestSettingsRepositoryListByKeys(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	rows := sqlmock.NewRows([]string{"key", "value", "description", "updated_by", "updated_at"}).
		AddRow(models.SettingPenaltyRatePerDay, "150", "", "u1", time.Now())
	mock.ExpectQuery("SELECT key, value").
		WithArgs(models.SettingPenaltyRatePerDay).
		WillReturnRows(rows)

	settings, err := repo.ListByKeys(context.Background(), []string{models.SettingPenaltyRatePerDay})
	require.NoError(t, err)
	require.Len(t, settings, 1)
	assert.Equal(t, "150", settings[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryListByKeysEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	settings, err := repo.ListByKeys(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, settings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryBulkUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO settings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO settings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	updatedBy := "u1"
	err := repo.BulkUpsert(context.Background(), []models.Setting{
		{Key: models.SettingMaxActiveStudent, Value: "4", UpdatedBy: &updatedBy},
		{Key: models.SettingPenaltyRatePerDay, Value: "150", UpdatedBy: &updatedBy},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
