package audit

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Hycient195/academia-pro-access/models"
	"github.com/Hycient195/academia-pro-access/repositories"
)

// memoryAuditRepository collects inserted records for assertions
type memoryAuditRepository struct {
	mu       sync.Mutex
	records  []*models.AuditRecord
	insertFn func(record *models.AuditRecord) error
}

func (r *memoryAuditRepository) Insert(_ context.Context, record *models.AuditRecord) error {
	if r.insertFn != nil {
		if err := r.insertFn(record); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func (r *memoryAuditRepository) GetByID(_ context.Context, id uuid.UUID) (*models.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, errors.New("audit record not found")
}

func (r *memoryAuditRepository) List(_ context.Context, _ repositories.AuditFilter) ([]*models.AuditRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.AuditRecord, len(r.records))
	copy(out, r.records)
	return out, nil
}

func (r *memoryAuditRepository) WithTx(_ repositories.Transaction) repositories.AuditRepository {
	return r
}

func (r *memoryAuditRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func TestService_RecordAndPersist(t *testing.T) {
	repo := &memoryAuditRepository{}
	svc := NewService(repo, zap.NewNop(), DefaultConfig())
	require.NoError(t, svc.Start())
	defer svc.Stop(time.Second)

	principal := "user-1"
	id, err := svc.Record(context.Background(), models.AuditEventAccessDecision, &principal,
		models.AuditSeverityInfo, "access granted",
		map[string]interface{}{"action": "read"}, "10.0.0.5", "Mozilla/5.0")

	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	assert.Eventually(t, func() bool {
		return repo.count() == 1
	}, time.Second, 5*time.Millisecond)

	record, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.AuditEventAccessDecision, record.EventKind)
	assert.Equal(t, models.AuditSeverityInfo, record.Severity)
	assert.Equal(t, "access granted", record.Description)
	require.NotNil(t, record.PrincipalID)
	assert.Equal(t, "user-1", *record.PrincipalID)
	assert.Equal(t, "10.0.0.5", record.SourceAddress)
	assert.JSONEq(t, `{"action":"read"}`, string(record.Metadata))
}

func TestService_RecordBeforeStart(t *testing.T) {
	svc := NewService(&memoryAuditRepository{}, zap.NewNop(), DefaultConfig())

	id, err := svc.Record(context.Background(), models.AuditEventAccessDecision, nil,
		models.AuditSeverityInfo, "too early", nil, "", "")

	assert.Error(t, err)
	assert.Equal(t, uuid.Nil, id)
}

func TestService_StartTwice(t *testing.T) {
	svc := NewService(&memoryAuditRepository{}, zap.NewNop(), DefaultConfig())
	require.NoError(t, svc.Start())
	defer svc.Stop(time.Second)

	assert.Error(t, svc.Start())
}

func TestService_StopWithoutStart(t *testing.T) {
	svc := NewService(&memoryAuditRepository{}, zap.NewNop(), DefaultConfig())

	assert.Error(t, svc.Stop(time.Second))
}

func TestService_StopDrainsPending(t *testing.T) {
	repo := &memoryAuditRepository{}
	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 100, WorkerCount: 2})
	require.NoError(t, svc.Start())

	for i := 0; i < 50; i++ {
		_, err := svc.Record(context.Background(), models.AuditEventAccessDecision, nil,
			models.AuditSeverityInfo, "pending", nil, "", "")
		require.NoError(t, err)
	}

	require.NoError(t, svc.Stop(5*time.Second))
	assert.Equal(t, 50, repo.count())
}

func TestService_BufferFullDropsRecord(t *testing.T) {
	// Insert blocks until released so the single-slot buffer stays full.
	release := make(chan struct{})
	repo := &memoryAuditRepository{insertFn: func(*models.AuditRecord) error {
		<-release
		return nil
	}}
	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})
	require.NoError(t, svc.Start())
	defer func() {
		close(release)
		svc.Stop(5 * time.Second)
	}()

	record := func() error {
		_, err := svc.Record(context.Background(), models.AuditEventAccessDecision, nil,
			models.AuditSeverityInfo, "burst", nil, "", "")
		return err
	}

	// Fill the worker and the buffer, then overflow.
	var dropErr error
	assert.Eventually(t, func() bool {
		if err := record(); err != nil {
			dropErr = err
			return true
		}
		return false
	}, time.Second, time.Millisecond)

	assert.Contains(t, dropErr.Error(), "audit record buffer full")
	assert.Greater(t, svc.GetStats().Dropped, uint64(0))
}

func TestService_PersistFailureDoesNotStopWorkers(t *testing.T) {
	var failed bool
	var mu sync.Mutex
	repo := &memoryAuditRepository{insertFn: func(*models.AuditRecord) error {
		mu.Lock()
		defer mu.Unlock()
		if !failed {
			failed = true
			return errors.New("write failed")
		}
		return nil
	}}
	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 10, WorkerCount: 1})
	require.NoError(t, svc.Start())
	defer svc.Stop(time.Second)

	for i := 0; i < 2; i++ {
		_, err := svc.Record(context.Background(), models.AuditEventAccessDecision, nil,
			models.AuditSeverityInfo, "entry", nil, "", "")
		require.NoError(t, err)
	}

	// The first insert fails and is logged; the second still lands.
	assert.Eventually(t, func() bool {
		return repo.count() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestService_GetStats(t *testing.T) {
	svc := NewService(&memoryAuditRepository{}, zap.NewNop(), Config{BufferSize: 64, WorkerCount: 3})

	stats := svc.GetStats()
	assert.Equal(t, 64, stats.BufferSize)
	assert.Equal(t, 3, stats.WorkerCount)
	assert.False(t, stats.Started)
	assert.Zero(t, stats.Dropped)

	require.NoError(t, svc.Start())
	defer svc.Stop(time.Second)

	assert.True(t, svc.GetStats().Started)
}

func TestService_RecordDuringStopDoesNotPanic(t *testing.T) {
	repo := &memoryAuditRepository{}
	svc := NewService(repo, zap.NewNop(), Config{BufferSize: 128, WorkerCount: 2})
	require.NoError(t, svc.Start())

	// Hammer Record from several goroutines while Stop closes the
	// channel. Each call must either enqueue or report the service
	// stopped; a send on the closed channel would panic the test.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, err := svc.Record(context.Background(), models.AuditEventAccessDecision, nil,
					models.AuditSeverityInfo, "entry", nil, "", "")
				if err != nil && strings.Contains(err.Error(), "not started") {
					return
				}
			}
		}()
	}

	require.NoError(t, svc.Stop(time.Second))
	wg.Wait()

	_, err := svc.Record(context.Background(), models.AuditEventAccessDecision, nil,
		models.AuditSeverityInfo, "entry", nil, "", "")
	require.Error(t, err)
}
