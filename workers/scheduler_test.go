package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"goscrow/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a stream whose fetch returns how many times it ran.
type counter struct {
	mu      sync.Mutex
	calls   int32
	applied []int
}

func (c *counter) stream(name string) *Stream {
	return NewStream(name, func(ctx context.Context) (int, error) {
		return int(atomic.AddInt32(&c.calls, 1)), nil
	}, func(v int) {
		c.mu.Lock()
		c.applied = append(c.applied, v)
		c.mu.Unlock()
	})
}

func (c *counter) count() int {
	return int(atomic.LoadInt32(&c.calls))
}

func (c *counter) last() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.applied) == 0 {
		return 0
	}
	return c.applied[len(c.applied)-1]
}

func TestStream_StaleResultDiscarded(t *testing.T) {
	release := []chan string{make(chan string), make(chan string)}
	var issued int32
	var snapshot string
	stream := NewStream("operations", func(ctx context.Context) (string, error) {
		i := atomic.AddInt32(&issued, 1) - 1
		return <-release[i], nil
	}, func(v string) {
		snapshot = v
	})

	outcomes := make(chan Outcome, 2)
	results := make(map[string]Outcome)
	var mu sync.Mutex

	// A is issued first
	go func() {
		o, _ := stream.refresh(context.Background(), true)
		mu.Lock()
		results["A"] = o
		mu.Unlock()
		outcomes <- o
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&issued) == 1 }, time.Second, time.Millisecond)

	go func() {
		o, _ := stream.refresh(context.Background(), true)
		mu.Lock()
		results["B"] = o
		mu.Unlock()
		outcomes <- o
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&issued) == 2 }, time.Second, time.Millisecond)

	// B resolves first, then A
	release[1] <- "B"
	<-outcomes
	release[0] <- "A"
	<-outcomes

	assert.Equal(t, "B", snapshot)
	assert.Equal(t, OutcomeApplied, results["B"])
	assert.Equal(t, OutcomeStale, results["A"])
	assert.Equal(t, uint64(2), stream.Generation())
}

func TestStream_ErrorKeepsSnapshot(t *testing.T) {
	applied := 0
	fail := errors.New("connection refused")
	stream := NewStream("tokens", func(ctx context.Context) (int, error) {
		return 0, fail
	}, func(int) { applied++ })

	outcome, err := stream.refresh(context.Background(), false)
	assert.Equal(t, OutcomeError, outcome)
	assert.ErrorIs(t, err, fail)
	assert.Zero(t, applied)
}

func TestStream_TickSkippedWhileInFlight(t *testing.T) {
	block := make(chan struct{})
	var calls int32
	stream := NewStream("balances", func(ctx context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		<-block
		return 1, nil
	}, func(int) {})

	done := make(chan Outcome)
	go func() {
		o, _ := stream.refresh(context.Background(), false)
		done <- o
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, time.Millisecond)

	outcome, err := stream.refresh(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	close(block)
	assert.Equal(t, OutcomeApplied, <-done)
}

func TestScheduler_StartRefreshesImmediately(t *testing.T) {
	c := &counter{}
	s := NewScheduler(time.Hour, metrics.New())
	s.Add(c.stream("operations"))

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Equal(t, StatePolling, s.State())
	require.Eventually(t, func() bool { return c.last() == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, s.Start(context.Background()), ErrBadState)
}

func TestScheduler_TicksUntilPaused(t *testing.T) {
	c := &counter{}
	s := NewScheduler(5*time.Millisecond, metrics.New())
	s.Add(c.stream("operations"))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Eventually(t, func() bool { return c.count() >= 3 }, time.Second, time.Millisecond)

	require.NoError(t, s.Pause())
	assert.Equal(t, StatePaused, s.State())
	assert.ErrorIs(t, s.Pause(), ErrBadState)

	// a tick racing with Pause may still land
	time.Sleep(20 * time.Millisecond)
	paused := c.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, paused, c.count())

	require.NoError(t, s.Resume())
	require.Eventually(t, func() bool { return c.count() > paused }, time.Second, time.Millisecond)
}

func TestScheduler_ResumeDoesNotForceRefresh(t *testing.T) {
	c := &counter{}
	s := NewScheduler(time.Hour, metrics.New())
	s.Add(c.stream("operations"))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	require.Eventually(t, func() bool { return c.count() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.Pause())
	require.NoError(t, s.Resume())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestScheduler_TriggerRefresh(t *testing.T) {
	ops, toks := &counter{}, &counter{}
	s := NewScheduler(time.Hour, metrics.New())
	s.Add(ops.stream("operations"), toks.stream("tokens"))

	// ignored while idle
	s.TriggerRefresh("operations")
	assert.Zero(t, ops.count())

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	require.Eventually(t, func() bool { return ops.count() == 1 && toks.count() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.Pause())
	s.TriggerRefresh("tokens")
	s.TriggerRefresh("nope")
	require.Eventually(t, func() bool { return toks.last() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, ops.count())
}

func TestScheduler_Refresh(t *testing.T) {
	c := &counter{}
	s := NewScheduler(time.Hour, metrics.New())
	s.Add(c.stream("operations"))

	outcome, err := s.Refresh(context.Background(), "operations")
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, 1, c.last())

	_, err = s.Refresh(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownStream)
}

func TestScheduler_StopCancelsReads(t *testing.T) {
	stream := NewStream("operations", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(int) {})
	s := NewScheduler(time.Hour, metrics.New())
	s.Add(stream)
	require.NoError(t, s.Start(context.Background()))

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, StateIdle, s.State())
}
