package election

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"chainvote/pkg/data"
	"chainvote/pkg/ui"
	"chainvote/pkg/utils"
)

const fetchKey = "election-state"

// Source is where election snapshots come from
type Source interface {
	ElectionState(ctx context.Context) (data.ElectionState, error)
}

// Poller keeps the displayed election state in line with the server.
// Each successful fetch replaces the snapshot wholesale; a failed fetch
// shows the connection-lost state and leaves the schedule running.
type Poller struct {
	source  Source
	view    ui.Projection
	timeout time.Duration
	logger  *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	current *data.ElectionState
	running *Handle
	issued  uint64
	applied uint64

	metrics *PollerMetrics
}

// PollerMetrics tracks polling health
type PollerMetrics struct {
	Polls               int64
	Failures            int64
	ConsecutiveFailures int
	AverageLatency      time.Duration
	LastSuccess         time.Time
	LastFailure         time.Time
	LastError           string
	mu                  sync.RWMutex
}

// Stats is a point-in-time copy of the poller metrics
type Stats struct {
	Polls               int64
	Failures            int64
	ConsecutiveFailures int
	AverageLatency      time.Duration
	LastSuccess         time.Time
	LastFailure         time.Time
	LastError           string
}

// NewPoller creates a poller. timeout bounds every single fetch.
func NewPoller(source Source, view ui.Projection, timeout time.Duration, logger *zap.Logger) *Poller {
	return &Poller{
		source:  source,
		view:    view,
		timeout: timeout,
		logger:  logger.Named("poller"),
		metrics: &PollerMetrics{},
	}
}

// Handle controls a running poll schedule
type Handle struct {
	poller   *Poller
	cron     *cron.Cron
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	once     sync.Once
}

// Start fetches immediately and then every interval. The interval must
// be a whole number of seconds, the resolution of the cron schedule.
func (p *Poller) Start(interval time.Duration) (*Handle, error) {
	if interval < time.Second || interval%time.Second != 0 {
		return nil, fmt.Errorf("invalid poll interval %s", interval)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running != nil {
		return nil, data.ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	cronLogger := utils.NewCronLogger(p.logger)
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	h := &Handle{poller: p, cron: c, cancel: cancel}
	c.Schedule(cron.Every(interval), cron.FuncJob(func() {
		p.poll(ctx)
	}))

	h.inflight.Add(1)
	utils.SafeGo(p.logger, func() {
		defer h.inflight.Done()
		p.poll(ctx)
	})
	c.Start()
	p.running = h

	p.logger.Info("Election polling started", zap.Duration("interval", interval))
	return h, nil
}

// Stop cancels the schedule and any fetch in flight, then waits for them
// to return. Safe to call more than once.
func (h *Handle) Stop() {
	h.once.Do(func() {
		h.cancel()
		<-h.cron.Stop().Done()
		h.inflight.Wait()

		h.poller.mu.Lock()
		if h.poller.running == h {
			h.poller.running = nil
		}
		h.poller.mu.Unlock()

		h.poller.logger.Info("Election polling stopped")
	})
}

// FetchOnce fetches, stores, and renders one snapshot. Concurrent callers
// share a single request.
func (p *Poller) FetchOnce(ctx context.Context) (data.ElectionState, error) {
	v, err, _ := p.group.Do(fetchKey, func() (interface{}, error) {
		return p.fetch(ctx)
	})
	if err != nil {
		return data.ElectionState{}, err
	}
	return v.(data.ElectionState), nil
}

// Refresh is FetchOnce for callers that just changed server state. It
// never joins a request issued before the call, which could return the
// state from before the change.
func (p *Poller) Refresh(ctx context.Context) (data.ElectionState, error) {
	p.group.Forget(fetchKey)
	return p.FetchOnce(ctx)
}

// Snapshot returns the last successfully fetched state
func (p *Poller) Snapshot() (data.ElectionState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return data.ElectionState{}, false
	}
	return *p.current, true
}

// Running reports whether a schedule is active
func (p *Poller) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running != nil
}

// Stats returns polling statistics
func (p *Poller) Stats() Stats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	return Stats{
		Polls:               p.metrics.Polls,
		Failures:            p.metrics.Failures,
		ConsecutiveFailures: p.metrics.ConsecutiveFailures,
		AverageLatency:      p.metrics.AverageLatency,
		LastSuccess:         p.metrics.LastSuccess,
		LastFailure:         p.metrics.LastFailure,
		LastError:           p.metrics.LastError,
	}
}

func (p *Poller) poll(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := p.FetchOnce(ctx); err != nil {
		p.logger.Debug("Scheduled poll failed", zap.Error(err))
	}
}

func (p *Poller) fetch(ctx context.Context) (data.ElectionState, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	start := time.Now()
	state, err := p.source.ElectionState(ctx)
	p.record(time.Since(start), err)

	if ctx.Err() == context.Canceled {
		// stopped mid-flight; nothing to show
		if err == nil {
			err = ctx.Err()
		}
		return data.ElectionState{}, &data.ConnectivityError{Op: "poll election state", Err: err}
	}

	if err != nil {
		if !data.IsConnectivity(err) {
			err = &data.ConnectivityError{Op: "poll election state", Err: err}
		}
		p.view.RenderConnectionLost(err)
		return data.ElectionState{}, err
	}

	p.apply(seq, state)
	return state, nil
}

// apply stores and renders state unless a request issued later has
// already been applied
func (p *Poller) apply(seq uint64, state data.ElectionState) {
	p.mu.Lock()
	if seq < p.applied {
		p.mu.Unlock()
		p.logger.Debug("Dropping superseded election state", zap.Uint64("seq", seq))
		return
	}
	p.applied = seq
	prev := p.current
	p.current = &state
	p.mu.Unlock()

	switch {
	case prev == nil:
		p.logger.Info("Election state loaded",
			zap.Stringer("phase", state.Phase),
			zap.String("title", state.Title))
	case prev.Phase != state.Phase:
		fields := []zap.Field{
			zap.Stringer("from", prev.Phase),
			zap.Stringer("to", state.Phase),
		}
		if prev.Phase.CanTransition(state.Phase) {
			p.logger.Info("Election phase changed", fields...)
		} else {
			p.logger.Warn("Election phase skipped a step", fields...)
		}
	}

	if !state.ChainValid && (prev == nil || prev.ChainValid) {
		p.logger.Warn("Ledger integrity check failed",
			zap.Int("chainLength", state.ChainLength),
			zap.Int("totalVotes", state.TotalVotes))
	}

	p.view.RenderElection(state)
}

func (p *Poller) record(latency time.Duration, err error) {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	now := time.Now()
	p.metrics.Polls++
	p.metrics.AverageLatency = (p.metrics.AverageLatency*9 + latency) / 10
	if err != nil {
		p.metrics.Failures++
		p.metrics.ConsecutiveFailures++
		p.metrics.LastFailure = now
		p.metrics.LastError = err.Error()
		return
	}

	if p.metrics.ConsecutiveFailures > 0 {
		p.logger.Info("Election API reachable again",
			zap.Int("failedPolls", p.metrics.ConsecutiveFailures))
	}
	p.metrics.ConsecutiveFailures = 0
	p.metrics.LastSuccess = now
}
