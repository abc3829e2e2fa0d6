package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storyverse/ai-gateway/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MockGenerationLogRepository is a mock implementation of GenerationLogRepository
type MockGenerationLogRepository struct {
	mock.Mock
	mu       sync.Mutex
	inserted []*models.GenerationLog
}

func (m *MockGenerationLogRepository) Insert(ctx context.Context, entry *models.GenerationLog) error {
	args := m.Called(ctx, entry)
	m.mu.Lock()
	m.inserted = append(m.inserted, entry)
	m.mu.Unlock()
	return args.Error(0)
}

func (m *MockGenerationLogRepository) DeleteOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	args := m.Called(ctx, retention)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockGenerationLogRepository) Inserted() []*models.GenerationLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.GenerationLog, len(m.inserted))
	copy(out, m.inserted)
	return out
}

func newEntry() *models.GenerationLog {
	return models.NewGenerationLog(uuid.New(), uuid.New(), models.GenerationContinue, "standard").
		WithSuccess("gemini", []string{"gemini"})
}

func TestService_StartStop(t *testing.T) {
	repo := new(MockGenerationLogRepository)
	service := NewService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 2})

	require.NoError(t, service.Start())

	stats := service.GetStats()
	assert.True(t, stats.Started)
	assert.Equal(t, 2, stats.WorkerCount)
	assert.Equal(t, 10, stats.BufferSize)

	assert.Error(t, service.Start(), "cannot start twice")

	require.NoError(t, service.Stop(5*time.Second))
	assert.False(t, service.GetStats().Started)
	assert.Error(t, service.Stop(time.Second), "cannot stop twice")
}

func TestService_Record(t *testing.T) {
	repo := new(MockGenerationLogRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewService(repo, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 3})
	require.NoError(t, service.Start())

	const count = 50
	for i := 0; i < count; i++ {
		service.Record(newEntry())
	}

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, repo.Inserted(), count, "stop drains the buffer")
	assert.Zero(t, service.GetStats().Dropped)
}

func TestService_ConcurrentRecord(t *testing.T) {
	repo := new(MockGenerationLogRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	service := NewService(repo, zap.NewNop(), Config{BufferSize: 1000, WorkerCount: 4})
	require.NoError(t, service.Start())

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				service.Record(newEntry())
			}
		}()
	}
	wg.Wait()

	require.NoError(t, service.Stop(5*time.Second))
	assert.Len(t, repo.Inserted(), 200)
}

func TestService_InsertErrorsAreLogged(t *testing.T) {
	repo := new(MockGenerationLogRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("db down"))

	service := NewService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())

	service.Record(newEntry())
	require.NoError(t, service.Stop(5*time.Second))
	repo.AssertNumberOfCalls(t, "Insert", 1)
}

func TestService_DropsWhenNotRunning(t *testing.T) {
	repo := new(MockGenerationLogRepository)
	service := NewService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})

	service.Record(newEntry())
	assert.Equal(t, 1, service.GetStats().Dropped)

	require.NoError(t, service.Start())
	require.NoError(t, service.Stop(time.Second))

	assert.NotPanics(t, func() { service.Record(newEntry()) }, "recording after stop must not send on a closed channel")
	assert.Equal(t, 2, service.GetStats().Dropped)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestService_BufferFull(t *testing.T) {
	release := make(chan struct{})
	repo := new(MockGenerationLogRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		<-release
	})

	service := NewService(repo, zap.NewNop(), Config{BufferSize: 2, WorkerCount: 1})
	require.NoError(t, service.Start())

	for i := 0; i < 10; i++ {
		service.Record(newEntry())
	}
	assert.Greater(t, service.GetStats().Dropped, 0)
	assert.LessOrEqual(t, service.GetStats().PendingEntries, 2)

	close(release)
	require.NoError(t, service.Stop(5*time.Second))
}

func TestService_StopTimeout(t *testing.T) {
	release := make(chan struct{})
	picked := make(chan struct{})
	repo := new(MockGenerationLogRepository)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil).Run(func(mock.Arguments) {
		close(picked)
		<-release
	})

	service := NewService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, service.Start())
	service.Record(newEntry())

	select {
	case <-picked:
	case <-time.After(time.Second):
		t.Fatal("worker never picked up the entry")
	}

	err := service.Stop(50 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	close(release)
}

func TestService_Prune(t *testing.T) {
	t.Run("retention loop", func(t *testing.T) {
		pruned := make(chan struct{}, 1)
		repo := new(MockGenerationLogRepository)
		repo.On("DeleteOlderThan", mock.Anything, time.Hour).Return(int64(3), nil).Run(func(mock.Arguments) {
			select {
			case pruned <- struct{}{}:
			default:
			}
		})

		service := NewService(repo, zap.NewNop(), Config{
			BufferSize:        10,
			WorkerCount:       1,
			Retention:         time.Hour,
			RetentionInterval: 10 * time.Millisecond,
		})
		require.NoError(t, service.Start())

		select {
		case <-pruned:
		case <-time.After(time.Second):
			t.Fatal("retention loop never pruned")
		}

		require.NoError(t, service.Stop(time.Second))
	})

	t.Run("errors return zero", func(t *testing.T) {
		repo := new(MockGenerationLogRepository)
		repo.On("DeleteOlderThan", mock.Anything, time.Minute).Return(int64(0), errors.New("locked"))

		service := NewService(repo, zap.NewNop(), Config{Retention: time.Minute})
		assert.Equal(t, int64(0), service.Prune(context.Background()))
	})
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, 1000, config.BufferSize)
	assert.Equal(t, 2, config.WorkerCount)
	assert.Equal(t, 30*24*time.Hour, config.Retention)

	service := NewService(new(MockGenerationLogRepository), zap.NewNop(), Config{})
	assert.Equal(t, 1000, service.GetStats().BufferSize)
	assert.Equal(t, 2, service.GetStats().WorkerCount)
}
