// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"naturelife-cert/internal/config"
	"naturelife-cert/internal/db"
)

// NewTestDB opens a migrated in-memory sqlite database that lives for the
// duration of the test.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Init(config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}
