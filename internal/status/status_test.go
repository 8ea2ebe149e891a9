package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/hh-toucher/internal/scheduler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type reporter struct{ report *scheduler.Report }

func (r reporter) LastReport() *scheduler.Report { return r.report }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestHealthz(t *testing.T) {
	w, body := get(t, NewRouter(pinger{}, reporter{}, zap.NewNop()), "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, body = get(t, NewRouter(pinger{err: errors.New("db down")}, reporter{}, zap.NewNop()), "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "down", body["status"])
	assert.Equal(t, "db down", body["error"])
}

func TestStatus(t *testing.T) {
	w, body := get(t, NewRouter(pinger{}, reporter{}, zap.NewNop()), "/status")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "waiting", body["status"])
	assert.NotContains(t, body, "report")

	report := &scheduler.Report{
		ID:       "tick-1",
		Groups:   2,
		Resumes:  3,
		Outcomes: map[scheduler.Outcome]int{scheduler.Touched: 2, scheduler.Expired: 1},
	}

	w, body = get(t, NewRouter(pinger{}, reporter{report: report}, zap.NewNop()), "/status")
	assert.Equal(t, http.StatusOK, w.Code)

	got, ok := body["report"].(map[string]any)
	require.True(t, ok, "report must be present: %v", body)
	assert.Equal(t, "tick-1", got["id"])
	assert.Equal(t, map[string]any{"touched": float64(2), "expired": float64(1)}, got["outcomes"])
}

func TestServeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), zap.NewNop()) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
