package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Jacobsin12/emma/internal/handlers"
	"github.com/Jacobsin12/emma/internal/middleware"
	"github.com/Jacobsin12/emma/internal/models"
	"github.com/Jacobsin12/emma/internal/repository"
	"github.com/Jacobsin12/emma/internal/service"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testRouter собирает весь HTTP-стек над in-memory SQLite, без Redis.
func testRouter(t *testing.T) (*gin.Engine, repository.TelemetryRepository) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Telemetry{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	repo := repository.NewTelemetryRepository(db)
	svc := service.NewTelemetryService(repo, nil, 0, t.TempDir())

	r := gin.New()
	r.Use(middleware.BodyLimitMiddleware())
	handlers.RegisterRoutes(r, handlers.NewTelemetryHandler(svc))

	return r, repo
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIngest_RoundTrip(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/telemetry",
		`{"device_id":"esp32-1","ts_esp":"2025-01-01T12:00:00Z","temperature":22,"humidity":55}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		OK bool `json:"ok"`
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !created.OK || created.ID == 0 {
		t.Fatalf("expected {ok:true, id>0}, got %+v", created)
	}

	w = doRequest(t, r, http.MethodGet, "/api/telemetry/latest?limit=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var records []models.Telemetry
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0]
	if got.DeviceID != "esp32-1" || got.Temperature != 22 || got.Humidity != 55 {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestIngest_ZeroReadings(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/telemetry",
		`{"device_id":"esp32-1","ts_esp":"2025-01-01T12:00:00Z","temperature":0,"humidity":0}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("zero readings must be accepted, got %d: %s", w.Code, w.Body.String())
	}
}

func TestIngest_MissingReadingIs400(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/telemetry",
		`{"device_id":"esp32-1","ts_esp":"2025-01-01T12:00:00Z","temperature":22}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	// Ничего не должно было сохраниться
	w = doRequest(t, r, http.MethodGet, "/api/telemetry/count", "")
	var resp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode count: %v", err)
	}
	if resp.Count != 0 {
		t.Errorf("expected count 0 after rejected ingest, got %d", resp.Count)
	}
}

func TestIngest_MissingTimestampIs400(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/telemetry",
		`{"device_id":"esp32-1","temperature":22,"humidity":55}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestIngest_MalformedJSONIs400(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(t, r, http.MethodPost, "/api/telemetry", `{"device_id":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestIngest_OversizedBodyIs400(t *testing.T) {
	r, _ := testRouter(t)

	// Тело за пределами 1 MB обрезается и не парсится
	padding := strings.Repeat("x", middleware.MaxBodyBytes+1)
	body := fmt.Sprintf(`{"device_id":"esp32-1","ts_esp":"2025-01-01T12:00:00Z","temperature":22,"humidity":55,"note":%q}`, padding)

	w := doRequest(t, r, http.MethodPost, "/api/telemetry", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", w.Code)
	}
}

func TestLatest_DefaultAndCap(t *testing.T) {
	r, repo := testRouter(t)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		record := &models.Telemetry{
			DeviceID:        "esp32-1",
			DeviceTimestamp: base.Add(time.Duration(i) * time.Minute),
			ServerTimestamp: base.Add(time.Duration(i) * time.Minute),
			Temperature:     20 + float64(i),
			Humidity:        50,
		}
		if err := repo.Create(context.Background(), record); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	// Без параметра действует default 50, отдаются все 3
	w := doRequest(t, r, http.MethodGet, "/api/telemetry/latest", "")
	if n := decodeRecords(t, w); n != 3 {
		t.Errorf("expected 3 records with default limit, got %d", n)
	}

	// limit=2 ограничивает выборку
	w = doRequest(t, r, http.MethodGet, "/api/telemetry/latest?limit=2", "")
	if n := decodeRecords(t, w); n != 2 {
		t.Errorf("expected 2 records with limit=2, got %d", n)
	}

	// Мусорный limit трактуется как отсутствующий
	w = doRequest(t, r, http.MethodGet, "/api/telemetry/latest?limit=abc", "")
	if n := decodeRecords(t, w); n != 3 {
		t.Errorf("expected 3 records with non-numeric limit, got %d", n)
	}

	// limit=5000 не роняет запрос, потолок 1000
	w = doRequest(t, r, http.MethodGet, "/api/telemetry/latest?limit=5000", "")
	if n := decodeRecords(t, w); n != 3 {
		t.Errorf("expected 3 records with clamped limit, got %d", n)
	}
}

func TestLatest_SortedDescending(t *testing.T) {
	r, repo := testRouter(t)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		record := &models.Telemetry{
			DeviceID:        "esp32-1",
			ServerTimestamp: base.Add(time.Duration(i) * time.Minute),
			Temperature:     20,
			Humidity:        50,
		}
		if err := repo.Create(context.Background(), record); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := doRequest(t, r, http.MethodGet, "/api/telemetry/latest", "")

	var records []models.Telemetry
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode records: %v", err)
	}

	for i := 1; i < len(records); i++ {
		if records[i].ServerTimestamp.After(records[i-1].ServerTimestamp) {
			t.Errorf("records not sorted DESC by ts_server")
		}
	}
}

func TestCount_MatchesIngested(t *testing.T) {
	r, _ := testRouter(t)

	const n = 5
	for i := 0; i < n; i++ {
		body := fmt.Sprintf(
			`{"device_id":"esp32-1","ts_esp":"2025-01-01T12:00:0%dZ","temperature":21,"humidity":45}`, i)
		if w := doRequest(t, r, http.MethodPost, "/api/telemetry", body); w.Code != http.StatusCreated {
			t.Fatalf("seed ingest failed: %d", w.Code)
		}
	}

	w := doRequest(t, r, http.MethodGet, "/api/telemetry/count", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode count: %v", err)
	}
	if resp.Count != n {
		t.Errorf("expected count %d, got %d", n, resp.Count)
	}
}

func TestUpdate_IntervalRange(t *testing.T) {
	r, _ := testRouter(t)

	for i := 0; i < 1000; i++ {
		w := doRequest(t, r, http.MethodGet, "/api/update", "")
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}

		var resp struct {
			Interval int `json:"interval"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode interval: %v", err)
		}
		if resp.Interval < 4 || resp.Interval > 60 {
			t.Fatalf("interval %d outside [4, 60]", resp.Interval)
		}
	}
}

func TestHealth(t *testing.T) {
	r, _ := testRouter(t)

	w := doRequest(t, r, http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "emma") {
		t.Errorf("unexpected liveness body: %q", w.Body.String())
	}
}

func decodeRecords(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var records []models.Telemetry
	if err := json.Unmarshal(w.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode records: %v", err)
	}
	return len(records)
}
