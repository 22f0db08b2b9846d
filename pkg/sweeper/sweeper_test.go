package sweeper_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mongotus/mongotus/pkg/sweeper"
)

type recordingStore struct {
	mutex   sync.Mutex
	befores []time.Time
}

func (s *recordingStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.befores = append(s.befores, before)
	return 1, nil
}

func (s *recordingStore) calls() []time.Time {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]time.Time(nil), s.befores...)
}

func TestSweeper(t *testing.T) {
	a := assert.New(t)

	store := &recordingStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &sweeper.Sweeper{
		Store:    store,
		Period:   time.Hour,
		Interval: 10 * time.Millisecond,
	}
	s.Start(ctx)

	// Wait for at least two sweeps.
	deadline := time.Now().Add(5 * time.Second)
	for len(store.calls()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	calls := store.calls()
	a.GreaterOrEqual(len(calls), 2)

	// Each sweep passes a cut-off one expiration period in the past.
	for _, before := range calls {
		diff := time.Since(before)
		a.Greater(diff, 59*time.Minute)
		a.Less(diff, 61*time.Minute)
	}

	// Cancelling the context stops the loop.
	cancel()
	time.Sleep(30 * time.Millisecond)
	count := len(store.calls())
	time.Sleep(30 * time.Millisecond)
	a.Equal(count, len(store.calls()))
}

func TestSweeperZeroPeriod(t *testing.T) {
	a := assert.New(t)

	store := &recordingStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &sweeper.Sweeper{Store: store, Period: 0, Interval: time.Millisecond}
	s.Start(ctx)

	time.Sleep(20 * time.Millisecond)
	a.Empty(store.calls())
}
