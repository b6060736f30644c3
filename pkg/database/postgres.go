package database

import (
	"fmt"
	"log"
	"time"

	"relay-chat/config"
	"relay-chat/internal/repository"
	"relay-chat/pkg/logger"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open connects to Postgres and configures the pool. All timestamps are written in UTC.
func Open(cfg *config.Config, l *logger.Logger) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	level := gormlogger.Warn
	if cfg.AppMode == "debug" {
		level = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:  NewGormLogger(l.Logger, level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// Connect opens the global connection and exits the process on failure.
func Connect(cfg *config.Config, l *logger.Logger) *gorm.DB {
	db, err := Open(cfg, l)
	if err != nil {
		log.Fatalf("%v", err)
	}
	DB = db
	l.Infof("Database connection established")
	return db
}

func Close() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// HealthCheck runs a trivial query through GORM.
func HealthCheck() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	var one int
	return DB.Raw("SELECT 1").Scan(&one).Error
}

func TableExists(table string) (bool, error) {
	if DB == nil {
		return false, fmt.Errorf("database not initialized")
	}
	return DB.Migrator().HasTable(table), nil
}

func GetTableCount(table string) (int64, error) {
	var count int64
	err := DB.Table(table).Count(&count).Error
	return count, err
}

func RunFullMigration() error {
	return repository.InitSchema(DB)
}

func DropAllTables() error {
	return repository.DropSchema(DB)
}

// TruncateAllTables empties every table while keeping the schema.
func TruncateAllTables() error {
	return DB.Exec("TRUNCATE TABLE outbox_events, message_reactions, messages, participants, conversations, friendships, friend_requests, users CASCADE").Error
}
