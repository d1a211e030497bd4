// Package testutil builds throwaway sqlite databases for package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"conference-payments/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated sqlite database in t.TempDir(). Transactions take the
// write lock up front so concurrent tests serialize instead of deadlocking.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on",
		filepath.Join(t.TempDir(), "test.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func CreateUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()

	passport := "A1234567"
	user := &model.User{
		Email:      email,
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Role:       "USER",
		PassportNo: &passport,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func CreateRegistrationType(t *testing.T, db *gorm.DB, name string, price int64) *model.RegistrationType {
	t.Helper()

	conference := &model.Conference{
		Title:    "Conference " + name + " " + fmt.Sprint(time.Now().UnixNano()),
		StartsAt: time.Now().Add(30 * 24 * time.Hour),
	}
	require.NoError(t, db.Create(conference).Error)

	rt := &model.RegistrationType{
		ConferenceID: conference.ID,
		Name:         name,
		Price:        decimal.NewFromInt(price),
	}
	require.NoError(t, db.Create(rt).Error)
	return rt
}
