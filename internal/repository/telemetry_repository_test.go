package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/Jacobsin12/emma/internal/models"
	"github.com/Jacobsin12/emma/internal/repository"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB поднимает изолированную in-memory SQLite под каждый тест.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}

	if err := db.AutoMigrate(&models.Telemetry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

func seedRecord(t *testing.T, repo repository.TelemetryRepository, deviceID string, tsServer time.Time) *models.Telemetry {
	t.Helper()

	record := &models.Telemetry{
		DeviceID:        deviceID,
		DeviceTimestamp: tsServer.Add(-2 * time.Second),
		ServerTimestamp: tsServer,
		Temperature:     21.5,
		Humidity:        48,
	}
	if err := repo.Create(context.Background(), record); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return record
}

func TestCreate_AssignsID(t *testing.T) {
	repo := repository.NewTelemetryRepository(setupTestDB(t))

	record := seedRecord(t, repo, "esp32-1", time.Now().UTC())
	if record.ID == 0 {
		t.Error("expected storage-generated id")
	}
}

func TestGetLatest_OrderAndLimit(t *testing.T) {
	repo := repository.NewTelemetryRepository(setupTestDB(t))

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedRecord(t, repo, "esp32-1", base.Add(time.Duration(i)*time.Minute))
	}

	records, err := repo.GetLatest(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}

	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	// Сортировка по ts_server по убыванию
	for i := 1; i < len(records); i++ {
		if records[i].ServerTimestamp.After(records[i-1].ServerTimestamp) {
			t.Errorf("records not sorted DESC by ts_server: %v after %v",
				records[i].ServerTimestamp, records[i-1].ServerTimestamp)
		}
	}

	want := base.Add(4 * time.Minute)
	if !records[0].ServerTimestamp.Equal(want) {
		t.Errorf("expected newest record first (%v), got %v", want, records[0].ServerTimestamp)
	}
}

func TestCount(t *testing.T) {
	repo := repository.NewTelemetryRepository(setupTestDB(t))

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		seedRecord(t, repo, "esp32-1", base.Add(time.Duration(i)*time.Second))
	}

	count, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 4 {
		t.Errorf("expected count 4, got %d", count)
	}
}

func TestGetByDateRange(t *testing.T) {
	repo := repository.NewTelemetryRepository(setupTestDB(t))

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	seedRecord(t, repo, "esp32-1", base)
	inRange := seedRecord(t, repo, "esp32-1", base.Add(time.Hour))
	seedRecord(t, repo, "esp32-1", base.Add(48*time.Hour))

	records, err := repo.GetByDateRange(context.Background(), base.Add(30*time.Minute), base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetByDateRange: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("expected 1 record in range, got %d", len(records))
	}
	if records[0].ID != inRange.ID {
		t.Errorf("expected record %d, got %d", inRange.ID, records[0].ID)
	}
}
