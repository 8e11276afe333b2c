package database

import (
	"fmt"
	"log"
	"time"

	"github.com/Jacobsin12/emma/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect открывает пул соединений по строке подключения из DATABASE_URL.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Настройка пула соединений
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connected successfully")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	// Автомиграция моделей
	if err := db.AutoMigrate(&models.Telemetry{}); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	// Индекс по серверной метке времени: latest сортирует по ней
	if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_telemetries_ts_server ON telemetries(ts_server DESC)").Error; err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}
