package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passing() CheckFunc {
	return func(_ context.Context) error { return nil }
}

func failing(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

func TestLiveEndpointAllPassing(t *testing.T) {
	s := NewService()
	s.AddLiveness("goroutines", time.Second, passing())
	s.AddLiveness("gc", time.Second, passing())

	w := httptest.NewRecorder()
	s.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body probeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestLiveEndpointFailStreakFlips(t *testing.T) {
	s := NewService()
	s.AddLiveness("db", time.Second, failing("connection refused"))

	ctx := context.Background()
	for range defaultFailAfter {
		s.liveness[0].tick(ctx)
	}

	w := httptest.NewRecorder()
	s.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body probeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["db"])
}

func TestLiveEndpointBelowThreshold(t *testing.T) {
	s := NewService()
	s.AddLiveness("flaky", time.Second, failing("temporary"))

	ctx := context.Background()
	for range defaultFailAfter - 1 {
		s.liveness[0].tick(ctx)
	}

	w := httptest.NewRecorder()
	s.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyEndpointDrain(t *testing.T) {
	s := NewService()
	s.AddReadiness("cache", time.Second, passing())
	s.SetReady(true)

	w := httptest.NewRecorder()
	s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, w.Code)

	s.SetReady(false)

	w = httptest.NewRecorder()
	s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body probeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Contains(t, body.Checks, "_ready")
}

func TestReadyEndpointOneFailing(t *testing.T) {
	s := NewService()
	s.AddReadiness("db", time.Second, passing())
	s.AddReadiness("cache", time.Second, failing("cache down"))
	s.SetReady(true)

	ctx := context.Background()
	for range defaultFailAfter {
		s.readiness[1].tick(ctx)
	}

	w := httptest.NewRecorder()
	s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body probeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Contains(t, body.Checks, "cache")
	assert.NotContains(t, body.Checks, "db")
}

func TestIsReady(t *testing.T) {
	s := NewService()
	s.AddReadiness("db", time.Second, passing())

	assert.False(t, s.IsReady(), "not ready before SetReady")
	s.SetReady(true)
	assert.True(t, s.IsReady())
	s.SetReady(false)
	assert.False(t, s.IsReady())
}

func TestProbeRecovery(t *testing.T) {
	down := true
	s := NewService()
	s.AddLiveness("flaky", time.Second, func(_ context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	p := s.liveness[0]
	ctx := context.Background()

	for range defaultFailAfter {
		p.tick(ctx)
	}
	assert.False(t, p.ok.Load())

	down = false
	p.tick(ctx)
	assert.True(t, p.ok.Load(), "probe should recover after one pass")
}

func TestStopIdempotent(t *testing.T) {
	s := NewService()
	s.AddLiveness("noop", time.Second, passing())
	s.Start(context.Background(), 100*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	s := NewService()
	s.AddLiveness("live", time.Second, failing("err"))
	s.AddReadiness("ready", time.Second, passing())
	s.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, 10*time.Millisecond)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				s.IsReady()

				w := httptest.NewRecorder()
				s.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

				w = httptest.NewRecorder()
				s.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	s.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
