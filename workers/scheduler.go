package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"goscrow/logger"
	"goscrow/metrics"
)

type State int32

const (
	StateIdle State = iota
	StatePolling
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StatePaused:
		return "paused"
	}
	return "unknown"
}

// Outcome of one refresh of a stream.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeStale   Outcome = "stale"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

var (
	ErrUnknownStream = errors.New("unknown polling stream")
	ErrBadState      = errors.New("scheduler is not in the required state")
)

// Stream is one independently converging polling target. Every refresh
// takes the next generation before it fetches; its result is applied only if
// no newer refresh was issued in the meantime.
type Stream struct {
	name string
	// fetch returns a closure applying the fetched result
	fetch func(ctx context.Context) (func(), error)

	generation uint64
	inFlight   int32
	applyMu    sync.Mutex
}

// NewStream splits a refresh into the ledger read and the snapshot update,
// so a superseded read can be dropped before it touches the snapshot.
func NewStream[T any](name string, fetch func(ctx context.Context) (T, error), apply func(T)) *Stream {
	return &Stream{
		name: name,
		fetch: func(ctx context.Context) (func(), error) {
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			return func() { apply(v) }, nil
		},
	}
}

func (s *Stream) Name() string {
	return s.name
}

// Generation is the generation of the most recently issued refresh.
func (s *Stream) Generation() uint64 {
	return atomic.LoadUint64(&s.generation)
}

func (s *Stream) refresh(ctx context.Context, force bool) (Outcome, error) {
	if !force && atomic.LoadInt32(&s.inFlight) > 0 {
		return OutcomeSkipped, nil
	}
	atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)

	gen := atomic.AddUint64(&s.generation, 1)
	apply, err := s.fetch(ctx)

	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	if gen != atomic.LoadUint64(&s.generation) {
		return OutcomeStale, err
	}
	if err != nil {
		return OutcomeError, err
	}
	apply()
	return OutcomeApplied, nil
}

// Scheduler drives periodic refreshes of its streams.
//
// Idle -> Polling on Start, which refreshes every stream at once and arms the
// ticker. Pause tears the ticker down; Resume arms a new one without
// refreshing. A tick skips streams whose previous refresh is still running.
// Pausing does not cancel in-flight reads.
type Scheduler struct {
	interval time.Duration
	metrics  *metrics.Metrics

	mu      sync.Mutex
	state   State
	streams []*Stream
	ctx     context.Context
	cancel  context.CancelFunc
	stopC   chan struct{}
	wg      sync.WaitGroup
}

func NewScheduler(interval time.Duration, m *metrics.Metrics) *Scheduler {
	return &Scheduler{interval: interval, metrics: m}
}

// Add registers a stream; streams must be added before Start.
func (s *Scheduler) Add(streams ...*Stream) {
	s.mu.Lock()
	s.streams = append(s.streams, streams...)
	s.mu.Unlock()
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Status() string {
	return s.State().String()
}

func (s *Scheduler) setState(state State) {
	s.state = state
	s.metrics.PollingState.Set(float64(state))
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return ErrBadState
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	logger.Logger.Infof("Starting polling of %d streams every %s", len(s.streams), s.interval)

	for _, stream := range s.streams {
		s.spawn(stream, true)
	}
	s.arm()
	s.setState(StatePolling)
	return nil
}

// arm starts a fresh ticker loop; must be called with s.mu held.
func (s *Scheduler) arm() {
	stopC := make(chan struct{})
	s.stopC = stopC
	ctx := s.ctx
	ticker := time.NewTicker(s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.tick()
			case <-stopC:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// disarm must be called with s.mu held.
func (s *Scheduler) disarm() {
	if s.stopC != nil {
		close(s.stopC)
		s.stopC = nil
	}
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePolling {
		return
	}
	for _, stream := range s.streams {
		s.spawn(stream, false)
	}
}

// spawn runs one refresh in the background; must be called with s.mu held.
func (s *Scheduler) spawn(stream *Stream, force bool) {
	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, stream, force)
	}()
}

func (s *Scheduler) run(ctx context.Context, stream *Stream, force bool) (Outcome, error) {
	outcome, err := stream.refresh(ctx, force)
	s.metrics.Refreshes.WithLabelValues(stream.name, string(outcome)).Inc()
	switch outcome {
	case OutcomeError:
		logger.Logger.WithField("stream", stream.name).Errorf("Error refreshing: %s", err.Error())
	case OutcomeStale:
		logger.Logger.WithField("stream", stream.name).Debugf("Discarded superseded refresh")
	case OutcomeSkipped:
		logger.Logger.WithField("stream", stream.name).Debugf("Previous refresh still running, skipping tick")
	}
	return outcome, err
}

func (s *Scheduler) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePolling {
		return ErrBadState
	}
	s.disarm()
	s.setState(StatePaused)
	logger.Logger.Info("Polling paused")
	return nil
}

func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return ErrBadState
	}
	s.arm()
	s.setState(StatePolling)
	logger.Logger.Info("Polling resumed")
	return nil
}

func (s *Scheduler) stream(name string) *Stream {
	for _, stream := range s.streams {
		if stream.name == name {
			return stream
		}
	}
	return nil
}

// TriggerRefresh issues an out-of-band refresh of one stream in the
// background, in any state but Idle. It supersedes in-flight refreshes.
func (s *Scheduler) TriggerRefresh(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return
	}
	stream := s.stream(name)
	if stream == nil {
		logger.Logger.Warnf("Refresh requested for %s: %s", name, ErrUnknownStream)
		return
	}
	s.spawn(stream, true)
}

// Refresh is the synchronous form of TriggerRefresh.
func (s *Scheduler) Refresh(ctx context.Context, name string) (Outcome, error) {
	s.mu.Lock()
	stream := s.stream(name)
	s.mu.Unlock()
	if stream == nil {
		return "", ErrUnknownStream
	}
	return s.run(ctx, stream, true)
}

// Stop tears the ticker down, cancels outstanding reads and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.disarm()
	s.cancel()
	s.setState(StateIdle)
	s.mu.Unlock()

	s.wg.Wait()
	logger.Logger.Info("Polling stopped")
}
