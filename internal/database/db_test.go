package database

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tacticalpanel/panel/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.Exec("SELECT 1").Error)
	require.NoError(t, Ping(context.Background(), db))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestInMemoryDatabasesAreIsolated(t *testing.T) {
	first := openTestDB(t)
	second := openTestDB(t)

	require.NoError(t, Migrate(first))
	require.NoError(t, first.Create(&models.User{Username: "alice", PasswordHash: "x"}).Error)

	require.NoError(t, Migrate(second))
	var count int64
	require.NoError(t, second.Model(&models.User{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db), "migrations must be re-runnable")

	migrator := db.Migrator()
	for _, model := range []interface{}{&models.User{}, &models.ServerInstance{}, &models.AuditLog{}, &models.CacheEntry{}} {
		require.True(t, migrator.HasTable(model))
	}
}

func TestUniqueUsernameTranslatesToDuplicatedKey(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&models.User{Username: "alice", PasswordHash: "x"}).Error)
	err := db.Create(&models.User{Username: "alice", PasswordHash: "y"}).Error
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestBootstrapSlotIsUnique(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Migrate(db))

	slot := models.BootstrapAdminSlot
	require.NoError(t, db.Create(&models.User{Username: "root", PasswordHash: "x", IsAdmin: true, AdminSlot: &slot}).Error)

	// regular users leave the slot NULL and never collide
	require.NoError(t, db.Create(&models.User{Username: "bob", PasswordHash: "x"}).Error)
	require.NoError(t, db.Create(&models.User{Username: "carol", PasswordHash: "x"}).Error)

	other := models.BootstrapAdminSlot
	err := db.Create(&models.User{Username: "root2", PasswordHash: "x", IsAdmin: true, AdminSlot: &other}).Error
	require.Error(t, err)
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
