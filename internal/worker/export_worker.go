package worker

import (
	"context"
	"log"
	"time"

	"github.com/Jacobsin12/emma/internal/service"
)

// ExportWorker периодически снимает CSV-срез показаний за последние сутки.
type ExportWorker struct {
	service  service.TelemetryService
	interval time.Duration
}

func NewExportWorker(service service.TelemetryService, interval time.Duration) *ExportWorker {
	return &ExportWorker{
		service:  service,
		interval: interval,
	}
}

func (w *ExportWorker) Name() string {
	return "telemetry export"
}

func (w *ExportWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.exportSnapshot(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (w *ExportWorker) exportSnapshot(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	path, err := w.service.ExportTelemetry(ctx, "csv", from, to)
	if err != nil {
		log.Printf("Telemetry export task error: %v", err)
		return
	}

	log.Printf("Telemetry export task: snapshot written to %s", path)
}
