package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/aggrun/internal/broadcast"
	"github.com/sawpanic/aggrun/internal/health"
	"github.com/sawpanic/aggrun/internal/ratelimit"
	"github.com/sawpanic/aggrun/internal/store"
)

func newTestScheduler() *Scheduler {
	db, _ := redismock.NewClientMock()
	s := store.New(db, time.Minute, nil, zerolog.Nop())
	return New(Config{UpdateInterval: time.Hour}, nil, ratelimit.New(nil), s, broadcast.New(zerolog.Nop()), health.NewTracker(), nil, zerolog.Nop())
}

func TestStop_WaitsForRunToExit(t *testing.T) {
	sched := newTestScheduler()

	done := make(chan struct{})
	go func() {
		sched.Run(context.Background())
		close(done)
	}()

	require.NoError(t, sched.Stop(context.Background()))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}

func TestStop_ReturnsContextErrorIfRunNeverStarted(t *testing.T) {
	sched := newTestScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, sched.Stop(ctx))
}
