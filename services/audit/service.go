package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/upb/secure-rag/models"
	"github.com/upb/secure-rag/repositories"
)

// Service writes the query audit trail asynchronously so recording
// never adds latency to the answer path.
type Service struct {
	repo        repositories.QueryAuditRepository
	logger      *zap.Logger
	entryChan   chan *models.QueryAudit
	workerCount int
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the audit Service
type Config struct {
	BufferSize  int
	WorkerCount int
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewService creates the audit trail service
func NewService(repo repositories.QueryAuditRepository, logger *zap.Logger, config Config) *Service {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	return &Service{
		repo:        repo,
		logger:      logger,
		entryChan:   make(chan *models.QueryAudit, config.BufferSize),
		workerCount: config.WorkerCount,
	}
}

// Start launches the background workers
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

	s.logger.Info("started audit trail service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", cap(s.entryChan)))
	return nil
}

// Stop drains pending entries and waits for workers, up to the timeout
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.started = false
	// Closing under the same lock that guards Record keeps a late
	// Record from sending on a closed channel.
	s.logger.Info("stopping audit trail service", zap.Int("pending_entries", len(s.entryChan)))
	close(s.entryChan)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record queues one trail entry without blocking. A full buffer drops
// the entry with a warning rather than stalling the query path.
func (s *Service) Record(entry *models.QueryAudit) {
	// The lock is held across the send so Stop cannot close the channel
	// between the started check and the enqueue. The send never blocks,
	// so the critical section stays short.
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		s.logger.Warn("audit entry dropped, service not started",
			zap.String("query_hash", entry.QueryHash))
		return
	}

	select {
	case s.entryChan <- entry:
	default:
		s.logger.Warn("audit buffer full, dropping entry",
			zap.String("tenant", entry.Tenant),
			zap.String("query_hash", entry.QueryHash))
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()

	for entry := range s.entryChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Insert(ctx, entry); err != nil {
			s.logger.Error("failed to insert audit entry",
				zap.Int("worker_id", id),
				zap.String("query_hash", entry.QueryHash),
				zap.Error(err))
		}
		cancel()
	}
}
