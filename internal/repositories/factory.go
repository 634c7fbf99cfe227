package repositories

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Morgiver/invitation-core/config"
	"github.com/Morgiver/invitation-core/internal/domain"
	"github.com/Morgiver/invitation-core/internal/storage"
)

// Open builds the repository selected by cfg.Storage.Driver. The returned
// close function releases the underlying connection and is never nil.
func Open(cfg *config.Config) (domain.InvitationRepository, func() error, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory, "":
		return NewMemoryInvitationRepository(), func() error { return nil }, nil
	case config.DriverPostgres:
		db, err := storage.InitPostgres(&cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return NewGormInvitationRepository(db), closeGorm(db), nil
	case config.DriverSQLite:
		db, err := storage.InitSQLite(&cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		return NewGormInvitationRepository(db), closeGorm(db), nil
	case config.DriverRedis:
		client, err := storage.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return NewRedisInvitationRepository(client, cfg.Redis.KeyPrefix), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func closeGorm(db *gorm.DB) func() error {
	return func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
}
