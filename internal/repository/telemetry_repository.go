package repository

import (
	"context"
	"time"

	"github.com/Jacobsin12/emma/internal/models"

	"gorm.io/gorm"
)

type TelemetryRepository interface {
	Create(ctx context.Context, telemetry *models.Telemetry) error
	GetLatest(ctx context.Context, limit int) ([]models.Telemetry, error)
	Count(ctx context.Context) (int64, error)
	GetByDateRange(ctx context.Context, from, to time.Time) ([]models.Telemetry, error)
}

type telemetryRepository struct {
	db *gorm.DB
}

func NewTelemetryRepository(db *gorm.DB) TelemetryRepository {
	return &telemetryRepository{db: db}
}

func (r *telemetryRepository) Create(ctx context.Context, telemetry *models.Telemetry) error {
	return r.db.WithContext(ctx).Create(telemetry).Error
}

func (r *telemetryRepository) GetLatest(ctx context.Context, limit int) ([]models.Telemetry, error) {
	var telemetries []models.Telemetry
	err := r.db.WithContext(ctx).
		Order("ts_server DESC").
		Limit(limit).
		Find(&telemetries).
		Error
	return telemetries, err
}

func (r *telemetryRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Telemetry{}).
		Count(&count).
		Error
	return count, err
}

func (r *telemetryRepository) GetByDateRange(ctx context.Context, from, to time.Time) ([]models.Telemetry, error) {
	var telemetries []models.Telemetry
	err := r.db.WithContext(ctx).
		Where("ts_server BETWEEN ? AND ?", from, to).
		Order("ts_server DESC").
		Find(&telemetries).
		Error
	return telemetries, err
}
