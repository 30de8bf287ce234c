package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds configuration for the audit service
type Config struct {
	BufferSize   int           // Size of the event buffer channel
	WorkerCount  int           // Number of concurrent writer workers
	WriteTimeout time.Duration // Per-record persistence deadline
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   10000,
		WorkerCount:  5,
		WriteTimeout: 5 * time.Second,
	}
}

// Service writes audit records asynchronously through a worker pool. It is
// the isolation boundary between decision-making and observability: Record
// returns immediately, and persistence failures are logged by the workers
// but never reach the decision path.
type Service struct {
	repo         repositories.AuditRepository
	logger       *zap.Logger
	recordChan   chan *models.AuditRecord
	workerCount  int
	bufferSize   int
	writeTimeout time.Duration
	wg           sync.WaitGroup
	mu           sync.Mutex
	started      bool

	dropped uint64
}

// NewService creates an audit service
func NewService(repo repositories.AuditRepository, logger *zap.Logger, cfg Config) *Service {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Service{
		repo:         repo,
		logger:       logger,
		recordChan:   make(chan *models.AuditRecord, cfg.BufferSize),
		workerCount:  cfg.WorkerCount,
		bufferSize:   cfg.BufferSize,
		writeTimeout: cfg.WriteTimeout,
	}
}

// Start launches the writer workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop drains pending records and stops the workers, waiting up to timeout
func (s *Service) Stop(timeout time.Duration) error {
	// Closed under the same lock that Record holds while sending, so a
	// concurrent Record either sends before the close or sees started
	// flipped and returns an error; it can never hit a closed channel.
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.started = false
	s.logger.Info("stopping audit service", zap.Int("pending_records", len(s.recordChan)))
	close(s.recordChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record builds an audit record and enqueues it without blocking,
// returning the new record's id. A full buffer drops the record; the
// returned error exists for the caller's logging only and must never
// change a decision.
func (s *Service) Record(_ context.Context, kind models.AuditEventKind, principalID *string, severity models.AuditSeverity, description string, metadata map[string]interface{}, sourceAddress, agent string) (uuid.UUID, error) {
	record := models.NewAuditRecord(kind, severity, description).
		WithSource(sourceAddress, agent)
	if principalID != nil {
		record.WithPrincipal(*principalID)
	}
	if metadata != nil {
		record.WithMetadata(metadata)
	}

	// The lock spans the started check and the send: Stop closes the
	// channel under the same lock, so the send can never race the close.
	// The send itself never blocks, so holding the lock here is cheap.
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return uuid.Nil, fmt.Errorf("audit service not started")
	}

	select {
	case s.recordChan <- record:
		return record.ID, nil
	default:
		s.dropped++
		s.logger.Warn("audit buffer full, dropping record",
			zap.String("event_kind", string(kind)),
			zap.Uint64("dropped_total", s.dropped))
		return uuid.Nil, fmt.Errorf("audit record buffer full")
	}
}

// worker drains the record channel into the repository
func (s *Service) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for record := range s.recordChan {
		if err := s.persist(record); err != nil {
			s.logger.Error("failed to persist audit record",
				zap.Int("worker_id", id),
				zap.String("record_id", record.ID.String()),
				zap.String("event_kind", string(record.EventKind)),
				zap.Error(err))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *Service) persist(record *models.AuditRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()

	if err := s.repo.Insert(ctx, record); err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}
	return nil
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize     int    `json:"buffer_size"`
	PendingRecords int    `json:"pending_records"`
	WorkerCount    int    `json:"worker_count"`
	Dropped        uint64 `json:"dropped"`
	Started        bool   `json:"started"`
}

// GetStats reports buffering and worker state
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingRecords: len(s.recordChan),
		WorkerCount:    s.workerCount,
		Dropped:        s.dropped,
		Started:        s.started,
	}
}
