package election

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"chainvote/pkg/api"
	"chainvote/pkg/config"
	"chainvote/pkg/data"
	"chainvote/pkg/ui/uitest"
)

// scriptedSource replays a fixed sequence of results, repeating the last one
type scriptedSource struct {
	mu      sync.Mutex
	results []result
	calls   int
	delay   time.Duration
}

type result struct {
	state data.ElectionState
	err   error
}

func (s *scriptedSource) ElectionState(ctx context.Context) (data.ElectionState, error) {
	s.mu.Lock()
	i := s.calls
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	s.calls++
	r := s.results[i]
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return data.ElectionState{}, &data.ConnectivityError{Op: "test", Err: ctx.Err()}
		}
	}
	return r.state, r.err
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestPoller(t *testing.T, source Source) (*Poller, *uitest.Recorder) {
	view := uitest.New()
	return NewPoller(source, view, time.Second, zaptest.NewLogger(t)), view
}

func TestFetchOnceAlternating(t *testing.T) {
	offline := &data.ConnectivityError{Op: "test", Err: errors.New("connection refused")}
	snapshots := []data.ElectionState{
		{Phase: data.PhaseWaiting, Title: "A", TotalVotes: 0, ChainLength: 1, ChainValid: true},
		{Phase: data.PhaseLive, Title: "B", TotalVotes: 5, ChainLength: 6, ChainValid: true},
		{Phase: data.PhaseLive, Title: "C", TotalVotes: 9, ChainLength: 10, ChainValid: false},
		{Phase: data.PhaseClosed, Title: "D", TotalVotes: 12, ChainLength: 13, ChainValid: true},
	}

	var script []result
	for _, s := range snapshots {
		script = append(script, result{state: s}, result{err: offline})
	}
	source := &scriptedSource{results: script}
	poller, view := newTestPoller(t, source)

	for i := range script {
		_, err := poller.FetchOnce(context.Background())

		latest := snapshots[i/2]
		got, ok := poller.Snapshot()
		require.True(t, ok)
		assert.Equal(t, latest, got, "poll %d", i)

		if i%2 == 0 {
			require.NoError(t, err)
			assert.False(t, view.Offline())
			last, _ := view.LastElection()
			assert.Equal(t, latest, last)
		} else {
			assert.True(t, data.IsConnectivity(err))
			assert.True(t, view.Offline())
		}
	}

	assert.Len(t, view.Elections(), len(snapshots))
	assert.Equal(t, len(snapshots), view.ConnectionLosses())

	stats := poller.Stats()
	assert.Equal(t, int64(len(script)), stats.Polls)
	assert.Equal(t, int64(len(snapshots)), stats.Failures)
	assert.Equal(t, 1, stats.ConsecutiveFailures)
	assert.Contains(t, stats.LastError, "connection refused")
}

func TestFetchOnceWrapsRejection(t *testing.T) {
	source := &scriptedSource{results: []result{{err: &data.ServerRejection{Status: 500, Message: "Internal Server Error"}}}}
	poller, view := newTestPoller(t, source)

	_, err := poller.FetchOnce(context.Background())
	assert.True(t, data.IsConnectivity(err))
	assert.Equal(t, 1, view.ConnectionLosses())
	_, ok := poller.Snapshot()
	assert.False(t, ok)
}

func TestFetchOnceSharesInflight(t *testing.T) {
	source := &scriptedSource{
		results: []result{{state: data.ElectionState{Phase: data.PhaseLive, ChainValid: true}}},
		delay:   100 * time.Millisecond,
	}
	poller, view := newTestPoller(t, source)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := poller.FetchOnce(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, source.Calls(), 5)
	assert.Equal(t, source.Calls(), len(view.Elections()))
}

func TestFetchOnceTimeout(t *testing.T) {
	source := &scriptedSource{
		results: []result{{state: data.ElectionState{Phase: data.PhaseLive}}},
		delay:   time.Hour,
	}
	view := uitest.New()
	poller := NewPoller(source, view, 50*time.Millisecond, zaptest.NewLogger(t))

	start := time.Now()
	_, err := poller.FetchOnce(context.Background())
	assert.True(t, data.IsConnectivity(err))
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, view.Offline())
}

func TestStartStop(t *testing.T) {
	source := &scriptedSource{results: []result{{state: data.ElectionState{Phase: data.PhaseWaiting, ChainValid: true}}}}
	poller, view := newTestPoller(t, source)

	handle, err := poller.Start(time.Second)
	require.NoError(t, err)
	assert.True(t, poller.Running())

	_, err = poller.Start(time.Second)
	assert.ErrorIs(t, err, data.ErrAlreadyRunning)

	// immediate fetch, then at least one scheduled tick
	require.Eventually(t, func() bool { return len(view.Elections()) >= 1 }, 500*time.Millisecond, 10*time.Millisecond)
	require.Eventually(t, func() bool { return source.Calls() >= 2 }, 3*time.Second, 50*time.Millisecond)

	handle.Stop()
	handle.Stop()
	assert.False(t, poller.Running())

	calls := source.Calls()
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, calls, source.Calls(), "no polls after Stop")

	handle, err = poller.Start(time.Second)
	require.NoError(t, err, "restart after stop")
	handle.Stop()
}

func TestStopCancelsInflight(t *testing.T) {
	source := &scriptedSource{
		results: []result{{state: data.ElectionState{Phase: data.PhaseLive}}},
		delay:   time.Hour,
	}
	view := uitest.New()
	poller := NewPoller(source, view, time.Hour, zaptest.NewLogger(t))

	handle, err := poller.Start(time.Second)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return source.Calls() == 1 }, time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		handle.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the in-flight fetch")
	}
	assert.Zero(t, view.ConnectionLosses(), "a stopped poll is not a connection loss")
}

func TestStartRejectsBadInterval(t *testing.T) {
	poller, _ := newTestPoller(t, &scriptedSource{results: []result{{}}})
	for _, interval := range []time.Duration{0, -time.Second, 500 * time.Millisecond, 1500 * time.Millisecond} {
		_, err := poller.Start(interval)
		assert.Error(t, err, interval.String())
	}
	assert.False(t, poller.Running())
}

// gatedSource blocks the first request after it has read the state until
// release is closed, so a change on the server lands mid-flight
type gatedSource struct {
	mu      sync.Mutex
	phase   data.Phase
	calls   int
	read    chan struct{}
	release chan struct{}
}

func (s *gatedSource) ElectionState(ctx context.Context) (data.ElectionState, error) {
	s.mu.Lock()
	s.calls++
	first := s.calls == 1
	state := data.ElectionState{Phase: s.phase, ChainValid: true}
	s.mu.Unlock()

	if first {
		close(s.read)
		<-s.release
	}
	return state, nil
}

func (s *gatedSource) setPhase(p data.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *gatedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestRefreshAfterChangeSkipsInflight(t *testing.T) {
	source := &gatedSource{
		phase:   data.PhaseWaiting,
		read:    make(chan struct{}),
		release: make(chan struct{}),
	}
	poller, view := newTestPoller(t, source)

	stale := make(chan data.ElectionState, 1)
	go func() {
		state, _ := poller.FetchOnce(context.Background())
		stale <- state
	}()
	<-source.read

	// the election starts while the scheduled fetch is still in flight
	source.setPhase(data.PhaseLive)
	state, err := poller.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, data.PhaseLive, state.Phase)
	assert.Equal(t, 2, source.Calls())

	close(source.release)
	assert.Equal(t, data.PhaseWaiting, (<-stale).Phase)

	got, ok := poller.Snapshot()
	require.True(t, ok)
	assert.Equal(t, data.PhaseLive, got.Phase, "older response does not overwrite the refresh")
	last, _ := view.LastElection()
	assert.Equal(t, data.PhaseLive, last.Phase)
	assert.Len(t, view.Elections(), 1)
}

// Scenario C: a failed poll is followed by a successful one that fully
// replaces the error display.
func TestConnectionRecovery(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !healthy.Load() {
			w.WriteHeader(http.StatusGatewayTimeout)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      true,
			"state":        "live",
			"title":        "Class Representative Election 2026",
			"total_votes":  42,
			"chain_length": 43,
			"chain_valid":  true,
		})
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.API.BaseURL = srv.URL
	logger := zaptest.NewLogger(t)
	view := uitest.New()
	poller := NewPoller(api.NewClient(cfg, logger), view, time.Second, logger)

	_, err := poller.FetchOnce(context.Background())
	require.Error(t, err)
	assert.True(t, view.Offline())
	assert.True(t, data.IsConnectivity(err))
	assert.Equal(t, 1, view.ConnectionLosses())

	healthy.Store(true)
	state, err := poller.FetchOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, view.Offline())

	assert.Equal(t, data.PhaseLive, state.Phase)
	assert.Equal(t, 42, state.TotalVotes)
	assert.True(t, state.ChainValid)
	assert.Equal(t, "Class Representative Election 2026", state.Title)

	shown, ok := view.LastElection()
	require.True(t, ok)
	assert.Equal(t, state, shown)
}
