package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Jacobsin12/emma/internal/models"
	"github.com/Jacobsin12/emma/internal/service"

	"github.com/gin-gonic/gin"
)

type TelemetryHandler struct {
	service service.TelemetryService
}

func NewTelemetryHandler(service service.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{service: service}
}

// Ingest принимает одно показание от устройства.
// Ошибки хранилища наружу не отдаем: в ответе всегда generic "internal".
func (h *TelemetryHandler) Ingest(c *gin.Context) {
	ctx := c.Request.Context()

	var req service.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	record, err := h.service.Ingest(ctx, req)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Msg})
			return
		}

		log.Printf("POST /api/telemetry error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"ok": true, "id": record.ID})
}

func (h *TelemetryHandler) Latest(c *gin.Context) {
	ctx := c.Request.Context()

	// Нечисловой limit трактуем как отсутствующий
	limit, err := strconv.Atoi(c.Query("limit"))
	hasLimit := err == nil

	records, err := h.service.Latest(ctx, limit, hasLimit)
	if err != nil {
		log.Printf("GET /api/telemetry/latest error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	if records == nil {
		records = []models.Telemetry{}
	}

	c.JSON(http.StatusOK, records)
}

func (h *TelemetryHandler) Count(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.service.Count(ctx)
	if err != nil {
		log.Printf("GET /api/telemetry/count error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// Update отдает устройству интервал до следующей отправки.
// Форма ответа {interval: n} зафиксирована контрактом с прошивкой, не менять.
func (h *TelemetryHandler) Update(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"interval": h.service.SuggestInterval()})
}

func (h *TelemetryHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()

	format := c.DefaultQuery("format", "csv")

	var from, to time.Time
	var err error

	if fromStr := c.Query("from"); fromStr != "" {
		from, err = time.Parse("2006-01-02", fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date format"})
			return
		}
	}

	if toStr := c.Query("to"); toStr != "" {
		to, err = time.Parse("2006-01-02", toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date format"})
			return
		}
	}

	path, err := h.service.ExportTelemetry(ctx, format, from, to)
	if err != nil {
		var vErr *service.ValidationError
		if errors.As(err, &vErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Msg})
			return
		}
		if errors.Is(err, service.ErrNoData) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no telemetry data in the requested range"})
			return
		}

		log.Printf("GET /api/telemetry/export error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return
	}

	c.File(path)
}

func (h *TelemetryHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "emma telemetry service")
}

func RegisterRoutes(router *gin.Engine, h *TelemetryHandler) {
	router.GET("/", h.Health)
	router.GET("/api/update", h.Update)

	api := router.Group("/api/telemetry")
	api.POST("", h.Ingest)
	api.GET("/latest", h.Latest)
	api.GET("/count", h.Count)
	api.GET("/export", h.Export)
}
