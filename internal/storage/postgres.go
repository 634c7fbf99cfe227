package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Morgiver/invitation-core/config"
	"github.com/Morgiver/invitation-core/internal/models"
)

// InitPostgres opens the connection pool and migrates the invitation table.
func InitPostgres(cfg *config.PostgresConfig) (*gorm.DB, error) {
	dsn := BuildDSN(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)
	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func BuildDSN(host, port, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable", host, port, user, password, dbname)
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Invitation{}); err != nil {
		return fmt.Errorf("failed to migrate invitations: %w", err)
	}
	return nil
}

// gormConfig turns on TranslateError so unique violations surface as
// gorm.ErrDuplicatedKey on every dialect.
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         newGormLogger(os.Stdout),
		TranslateError: true,
	}
}

// newGormLogger logs slow queries and real errors. Lookups that find
// nothing are a normal outcome here, not an error.
func newGormLogger(w io.Writer) gormlogger.Interface {
	return gormlogger.New(log.New(w, "\r\n", log.LstdFlags), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
