package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/turnstile/pkg/domain"
	"github.com/aretw0/turnstile/pkg/ports"
	"github.com/aretw0/turnstile/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.Session
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sess *domain.Session) error {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Session)
	}
	copied := *sess
	s.data[sess.ID] = &copied
	return nil
}

func (s *SlowStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	time.Sleep(10 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.data[sessionID]; ok {
		copied := *sess
		return &copied, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	return nil, nil
}

func TestManager_Locking(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	sess := domain.NewSession(id)
	sess.Data["count"] = 0
	require.NoError(t, manager.Save(ctx, sess))

	var wg sync.WaitGroup
	concurrentWrites := 10

	// Read-Modify-Write under WithLock must not lose updates
	for i := 0; i < concurrentWrites; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context) error {
				s, err := store.Load(ctx, id)
				if err != nil {
					return err
				}
				s.Data = map[string]any{"count": s.Data["count"].(int) + 1}
				return store.Save(ctx, s)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, concurrentWrites, final.Data["count"])
}

func TestManager_LoadOrStart(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := manager.LoadOrStart(ctx, id)
			if !assert.NoError(t, err) {
				return
			}
			if s.New {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created, "exactly one caller creates the session")

	s, err := manager.Load(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, id, s.ID)
}

// failingStore fails every Load with a backend error.
type failingStore struct{ SlowStore }

func (f *failingStore) Load(context.Context, string) (*domain.Session, error) {
	return nil, errors.New("connection refused")
}

func TestManager_LoadOrStartBackendError(t *testing.T) {
	manager := session.NewManager(&failingStore{})
	_, err := manager.LoadOrStart(context.Background(), "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSessionNotFound)
}

// stubLocker records lock usage.
type stubLocker struct {
	mu      sync.Mutex
	locks   int
	unlocks int
	lastTTL time.Duration
	lockErr error
}

func (l *stubLocker) Lock(_ context.Context, _ string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockErr != nil {
		return nil, l.lockErr
	}
	l.locks++
	l.lastTTL = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	ctx := context.Background()
	locker := &stubLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker), session.WithLockTTL(time.Second))

	require.NoError(t, manager.Save(ctx, domain.NewSession("a")))
	assert.Equal(t, 1, locker.locks)
	assert.Equal(t, 1, locker.unlocks)
	assert.Equal(t, time.Second, locker.lastTTL)

	locker.lockErr = errors.New("redis down")
	err := manager.Save(ctx, domain.NewSession("a"))
	assert.ErrorIs(t, err, locker.lockErr)
}
