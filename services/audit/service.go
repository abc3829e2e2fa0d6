// Package audit persists the AI generation trail asynchronously so a slow
// database never delays a writing tool's response.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/storyverse/ai-gateway/models"
	"github.com/storyverse/ai-gateway/repositories"
	"go.uber.org/zap"
)

// Config holds configuration for the Service
type Config struct {
	BufferSize        int           // Size of the entry buffer channel
	WorkerCount       int           // Number of concurrent writers
	Retention         time.Duration // Entries older than this are pruned; 0 keeps everything
	RetentionInterval time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:        1000,
		WorkerCount:       2,
		Retention:         30 * 24 * time.Hour,
		RetentionInterval: time.Hour,
	}
}

// Service writes generation log entries in the background
type Service struct {
	repo    repositories.GenerationLogRepository
	logger  *zap.Logger
	config  Config
	entries chan *models.GenerationLog

	workers   sync.WaitGroup
	retention sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
	dropped int
}

// NewService creates a new Service instance
func NewService(repo repositories.GenerationLogRepository, logger *zap.Logger, config Config) *Service {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig().BufferSize
	}
	if config.WorkerCount <= 0 {
		config.WorkerCount = DefaultConfig().WorkerCount
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		repo:    repo,
		logger:  logger,
		config:  config,
		entries: make(chan *models.GenerationLog, config.BufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start starts the writers and, when retention is set, the pruning loop
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.config.WorkerCount; i++ {
		s.workers.Add(1)
		go s.worker(i)
	}

	if s.config.Retention > 0 && s.config.RetentionInterval > 0 {
		s.retention.Add(1)
		go s.pruneLoop()
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.config.WorkerCount),
		zap.Int("buffer_size", s.config.BufferSize),
		zap.Duration("retention", s.config.Retention))

	return nil
}

// Stop drains the buffer and waits for the writers up to timeout
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	close(s.entries)
	pending := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_entries", pending))

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
	case <-time.After(timeout):
		err = fmt.Errorf("audit service stop timeout after %v", timeout)
	}

	s.cancel()
	s.retention.Wait()
	return err
}

// Record queues an entry without blocking. Entries are dropped when the
// buffer is full or the service is not running.
func (s *Service) Record(entry *models.GenerationLog) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		s.dropped++
		return
	}

	select {
	case s.entries <- entry:
	default:
		s.dropped++
		s.logger.Warn("audit buffer full, dropping generation log",
			zap.String("operation", string(entry.Operation)),
			zap.String("story_id", entry.StoryID.String()))
	}
}

func (s *Service) worker(id int) {
	defer s.workers.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for entry := range s.entries {
		if err := s.write(entry); err != nil {
			s.logger.Error("failed to write generation log",
				zap.Int("worker_id", id),
				zap.String("operation", string(entry.Operation)),
				zap.Error(err))
		}
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *Service) write(entry *models.GenerationLog) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.repo.Insert(ctx, entry)
}

func (s *Service) pruneLoop() {
	defer s.retention.Done()

	ticker := time.NewTicker(s.config.RetentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Prune(s.ctx)
		case <-s.ctx.Done():
			return
		}
	}
}

// Prune deletes entries past the retention period
func (s *Service) Prune(ctx context.Context) int64 {
	n, err := s.repo.DeleteOlderThan(ctx, s.config.Retention)
	if err != nil {
		s.logger.Error("failed to prune generation logs", zap.Error(err))
		return 0
	}
	if n > 0 {
		s.logger.Info("pruned generation logs",
			zap.Int64("rows_deleted", n),
			zap.Duration("retention", s.config.Retention))
	}
	return n
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize     int
	PendingEntries int
	WorkerCount    int
	Dropped        int
	Started        bool
}

// GetStats returns statistics about the audit service
func (s *Service) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		BufferSize:     s.config.BufferSize,
		PendingEntries: len(s.entries),
		WorkerCount:    s.config.WorkerCount,
		Dropped:        s.dropped,
		Started:        s.started && !s.stopped,
	}
}
