package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

// stopTimeout ограничивает ожидание фоновых задач при остановке сервера.
const stopTimeout = 10 * time.Second

// Worker выполняет фоновую задачу телеметрии до отмены контекста.
type Worker interface {
	Name() string
	Run(ctx context.Context)
}

// Scheduler держит фоновые задачи сервиса (экспорт срезов и т.п.)
// и останавливает их через общий контекст при завершении сервера.
type Scheduler struct {
	workers []Worker
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

func (s *Scheduler) AddWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, w)
}

// Start запускает каждую задачу в своей горутине. Повторный вызов
// после Stop ничего не делает.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.cancel != nil {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	log.Printf("Starting %d telemetry background task(s)", len(s.workers))

	for _, w := range s.workers {
		s.wg.Add(1)
		go func(w Worker) {
			defer s.wg.Done()
			log.Printf("Background task %q started", w.Name())
			w.Run(ctx)
			log.Printf("Background task %q finished", w.Name())
		}(w)
	}
}

// Stop отменяет контекст задач и ждет их завершения не дольше stopTimeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Telemetry background tasks stopped")
	case <-time.After(stopTimeout):
		log.Println("Timed out waiting for telemetry background tasks")
	}
}
