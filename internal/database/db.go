package database

import (
	"fmt"

	"memory_stitcher_go_backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB opens the postgres connection and migrates the schema.
func InitDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ChatSession{},
		&models.Message{},
		&models.SystemPrompt{},
		&models.Story{},
		&models.FamilyGroup{},
		&models.FamilyMember{},
		&models.ProcessedCheckout{},
		&models.FailedAttempt{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return db, nil
}
