package repository

import (
	"context"
	"path/filepath"
	"testing"

	"nerdtalk/internal/database"
	"nerdtalk/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB returns a migrated sqlite database private to the test.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nerdtalk.db")
	db, err := database.Open(sqlite.Open(database.SQLiteDSN(path)))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, externalID string) *models.User {
	t.Helper()
	u := &models.User{ExternalID: externalID, Name: externalID, Username: externalID, Onboarded: true}
	require.NoError(t, NewUserRepository(db).Upsert(context.Background(), u))
	return u
}

func seedCommunity(t *testing.T, db *gorm.DB, externalID string) *models.Community {
	t.Helper()
	c := &models.Community{ExternalID: externalID, Name: externalID, Slug: externalID}
	require.NoError(t, NewCommunityRepository(db).Create(context.Background(), c))
	return c
}

func strPtr(s string) *string { return &s }
