package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/service/hold"
	"github.com/jwalitptl/booking-api/internal/testutil"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanupExpiredHolds(ctx context.Context) (int64, error) {
	c.calls.Add(1)
	return 0, c.err
}

func TestHoldCleanupWorker_RunOnce(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := f.AddService("Haircut", 30, 0, 1)
	start := testutil.At(2026, 3, 10, 9, 0)
	f.AddHold(svc, nil, start, -time.Minute)
	f.AddHold(svc, nil, start.Add(time.Hour), time.Minute)

	holds := hold.NewService(f.Store, f.Store.Catalog(), f.Store.Holds(), f.Clock, 0, logger.Nop(), metrics.New("test"))
	w := NewHoldCleanupWorker(holds, time.Minute, logger.Nop())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, f.Store.AllHolds(), 1)

	n, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHoldCleanupWorker_RunOnceWrapsError(t *testing.T) {
	cause := errors.New("database is down")
	w := NewHoldCleanupWorker(&countingCleaner{err: cause}, time.Minute, logger.Nop())

	_, err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, cause)
}

func TestHoldCleanupWorker_StartStopsWithContext(t *testing.T) {
	cleaner := &countingCleaner{err: errors.New("transient")}
	w := NewHoldCleanupWorker(cleaner, 5*time.Millisecond, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return cleaner.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
