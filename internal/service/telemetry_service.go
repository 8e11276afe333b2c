package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/Jacobsin12/emma/internal/models"
	"github.com/Jacobsin12/emma/internal/repository"
	"github.com/Jacobsin12/emma/internal/utils"
	"github.com/Jacobsin12/emma/internal/validator"

	"gorm.io/datatypes"
)

// Интервал опроса, который сервис предлагает устройствам (секунды).
const (
	intervalMin = 4
	intervalMax = 60
)

const (
	cacheKeyCount         = "telemetry:count"
	cacheKeyLatestPattern = "telemetry:latest:*"
)

// ValidationError сигнализирует об ошибке валидации входного payload, маппится в 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// ErrNoData означает пустой диапазон при экспорте, маппится в 404.
var ErrNoData = errors.New("no telemetry data in the requested range")

// IngestRequest описывает payload прошивки ESP32. Числовые поля заданы указателями:
// присутствующий ноль валиден и не должен считаться отсутствием.
type IngestRequest struct {
	DeviceID    string             `json:"device_id"`
	TsESP       *string            `json:"ts_esp"`
	Temperature *float64           `json:"temperature"`
	Temp        *float64           `json:"temp"`
	Humidity    *float64           `json:"humidity"`
	Hum         *float64           `json:"hum"`
	Touch       map[string]float64 `json:"touch"`
	WifiRSSI    *float64           `json:"wifi_rssi"`
	FreeHeap    *float64           `json:"free_heap"`
}

type TelemetryService interface {
	Ingest(ctx context.Context, req IngestRequest) (*models.Telemetry, error)
	Latest(ctx context.Context, limit int, hasLimit bool) ([]models.Telemetry, error)
	Count(ctx context.Context) (int64, error)
	SuggestInterval() int
	ExportTelemetry(ctx context.Context, format string, from, to time.Time) (string, error)
}

type telemetryService struct {
	repo      repository.TelemetryRepository
	cacheRepo repository.CacheRepository
	cacheTTL  time.Duration
	outputDir string
}

func NewTelemetryService(
	repo repository.TelemetryRepository,
	cacheRepo repository.CacheRepository,
	cacheTTL time.Duration,
	outputDir string,
) TelemetryService {
	if outputDir == "" {
		outputDir = "./data/export"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		log.Printf("Failed to create export directory: %v", err)
	}

	return &telemetryService{
		repo:      repo,
		cacheRepo: cacheRepo,
		cacheTTL:  cacheTTL,
		outputDir: outputDir,
	}
}

// Ingest валидирует payload и сохраняет ровно одну запись.
// Порядок проверок: device_id, затем ts_esp, затем temperature/humidity.
func (s *telemetryService) Ingest(ctx context.Context, req IngestRequest) (*models.Telemetry, error) {
	now := time.Now().UTC()

	deviceID := validator.ResolveDeviceID(req.DeviceID)

	if req.TsESP == nil {
		return nil, &ValidationError{Msg: "ts_esp is required"}
	}

	tsDevice, ok := validator.ParseDeviceTimestamp(*req.TsESP, now)
	if !ok {
		log.Printf("Invalid ts_esp %q from device %s, using server time", *req.TsESP, deviceID)
	}

	// Прошивка может слать короткие алиасы temp/hum
	temperature := firstValue(req.Temperature, req.Temp)
	humidity := firstValue(req.Humidity, req.Hum)

	if temperature == nil || humidity == nil {
		return nil, &ValidationError{Msg: "temperature/humidity (or temp/hum) are required"}
	}

	record := &models.Telemetry{
		DeviceID:        deviceID,
		DeviceTimestamp: tsDevice,
		ServerTimestamp: now,
		Temperature:     *temperature,
		Humidity:        *humidity,
		Touch:           touchMap(req.Touch),
		WifiRSSI:        req.WifiRSSI,
		FreeHeap:        req.FreeHeap,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save telemetry record: %w", err)
	}

	s.invalidateCache(ctx)

	return record, nil
}

func (s *telemetryService) Latest(ctx context.Context, limit int, hasLimit bool) ([]models.Telemetry, error) {
	effective := validator.ClampLimit(limit, hasLimit)

	cacheKey := fmt.Sprintf("telemetry:latest:%d", effective)
	if s.cacheRepo != nil {
		var cached []models.Telemetry
		if hit, err := s.cacheRepo.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	records, err := s.repo.GetLatest(ctx, effective)
	if err != nil {
		return nil, err
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(ctx, cacheKey, records, s.cacheTTL); err != nil {
			log.Printf("Failed to cache latest telemetry: %v", err)
		}
	}

	return records, nil
}

func (s *telemetryService) Count(ctx context.Context) (int64, error) {
	if s.cacheRepo != nil {
		var cached int64
		if hit, err := s.cacheRepo.GetJSON(ctx, cacheKeyCount, &cached); err == nil && hit {
			return cached, nil
		}
	}

	count, err := s.repo.Count(ctx)
	if err != nil {
		return 0, err
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(ctx, cacheKeyCount, count, s.cacheTTL); err != nil {
			log.Printf("Failed to cache telemetry count: %v", err)
		}
	}

	return count, nil
}

// SuggestInterval возвращает равномерно случайное целое из [intervalMin, intervalMax],
// свежий розыгрыш на каждый вызов, без общего состояния.
func (s *telemetryService) SuggestInterval() int {
	return intervalMin + rand.Intn(intervalMax-intervalMin+1)
}

func (s *telemetryService) ExportTelemetry(ctx context.Context, format string, from, to time.Time) (string, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}

	if from.After(to) {
		return "", &ValidationError{Msg: "from must not be after to"}
	}

	// Диапазон шире 30 дней отклоняем, чтобы не собирать гигантские файлы
	maxRange := 30 * 24 * time.Hour
	if to.Sub(from) > maxRange {
		return "", &ValidationError{Msg: "date range must not exceed 30 days"}
	}

	records, err := s.repo.GetByDateRange(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("failed to get telemetry data: %w", err)
	}

	if len(records) == 0 {
		return "", ErrNoData
	}

	timestamp := time.Now().UTC().Format("20060102_150405")

	switch format {
	case "csv":
		path := filepath.Join(s.outputDir, fmt.Sprintf("telemetry_export_%s.csv", timestamp))
		if err := utils.SaveAsCSV(path, records); err != nil {
			return "", err
		}
		return path, nil

	case "excel", "xlsx":
		path := filepath.Join(s.outputDir, fmt.Sprintf("telemetry_export_%s.xlsx", timestamp))
		if err := utils.CreateExcelFile(path, records); err != nil {
			return "", err
		}
		return path, nil

	case "json":
		path := filepath.Join(s.outputDir, fmt.Sprintf("telemetry_export_%s.json", timestamp))
		if err := utils.SaveAsJSON(path, records); err != nil {
			return "", err
		}
		return path, nil

	default:
		return "", &ValidationError{Msg: fmt.Sprintf("unsupported format: %s", format)}
	}
}

func (s *telemetryService) invalidateCache(ctx context.Context) {
	if s.cacheRepo == nil {
		return
	}

	if err := s.cacheRepo.Delete(ctx, cacheKeyCount); err != nil {
		log.Printf("Failed to invalidate count cache: %v", err)
	}
	if err := s.cacheRepo.DeleteByPattern(ctx, cacheKeyLatestPattern); err != nil {
		log.Printf("Failed to invalidate latest cache: %v", err)
	}
}

func firstValue(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func touchMap(touch map[string]float64) datatypes.JSONMap {
	if len(touch) == 0 {
		return nil
	}

	m := make(datatypes.JSONMap, len(touch))
	for k, v := range touch {
		m[k] = v
	}
	return m
}
