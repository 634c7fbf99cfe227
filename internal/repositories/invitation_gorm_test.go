package repositories

import (
	"bytes"
	"context"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Morgiver/invitation-core/config"
	"github.com/Morgiver/invitation-core/internal/domain"
	"github.com/Morgiver/invitation-core/internal/storage"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := storage.InitSQLite(&config.SQLiteConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestGormInvitationRepository(t *testing.T) {
	testRepositoryContract(t, func(t *testing.T) domain.InvitationRepository {
		return NewGormInvitationRepository(openSQLite(t))
	})
}

func TestGormInvitationRepository_SaveLogsNoErrors(t *testing.T) {
	var buf bytes.Buffer
	strict := gormlogger.New(log.New(&buf, "", 0), gormlogger.Config{LogLevel: gormlogger.Error})
	repo := NewGormInvitationRepository(openSQLite(t).Session(&gorm.Session{Logger: strict}))

	ctx := context.Background()
	inv := newInvitation(invitationOpts{id: "id-1", code: "QUIET-01"})
	_, err := repo.Save(ctx, inv)
	require.NoError(t, err)
	_, err = repo.Save(ctx, inv)
	require.NoError(t, err)

	assert.Empty(t, buf.String())
}
