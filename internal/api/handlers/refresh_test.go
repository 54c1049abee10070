package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketday/tracker/internal/contracts"
	"github.com/marketday/tracker/internal/refresh"
	"github.com/marketday/tracker/pkg/logger"
)

func newRefreshHandler(runner refresh.Runner) (*RefreshHandler, *refresh.Supervisor) {
	sup := refresh.New(runner, time.Minute, logger.NewNop())
	return NewRefreshHandler(sup, logger.NewNop()), sup
}

func noopRunner() refresh.Runner {
	return refresh.RunnerFunc(func(ctx context.Context, report refresh.ProgressFunc) error {
		return nil
	})
}

func gatedRunner(release chan struct{}) refresh.Runner {
	return refresh.RunnerFunc(func(ctx context.Context, report refresh.ProgressFunc) error {
		<-release
		return nil
	})
}

// drainTerminal reads updates until a finished status arrives.
func drainTerminal(t *testing.T, updates chan contracts.RefreshStatus) contracts.RefreshStatus {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case status := <-updates:
			if status.LastStatus.Terminal() {
				return status
			}
		case <-deadline:
			t.Fatal("refresh did not finish in time")
		}
	}
}

func doPost(t *testing.T, handler http.HandlerFunc, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestTriggerRefresh(t *testing.T) {
	release := make(chan struct{})
	h, sup := newRefreshHandler(gatedRunner(release))
	updates := sup.Subscribe()
	defer sup.Unsubscribe(updates)

	rec, body := doPost(t, h.Trigger, "/api/refresh")

	require.Equal(t, http.StatusAccepted, rec.Code)
	data := envelopeData(t, body)
	assert.Equal(t, true, data["running"])
	assert.Equal(t, "running", data["last_status"])

	close(release)
	final := drainTerminal(t, updates)
	assert.Equal(t, contracts.RefreshSuccess, final.LastStatus)
}

func TestTriggerRefreshConflict(t *testing.T) {
	release := make(chan struct{})
	h, sup := newRefreshHandler(gatedRunner(release))
	updates := sup.Subscribe()
	defer sup.Unsubscribe(updates)

	rec, _ := doPost(t, h.Trigger, "/api/refresh")
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec, body := doPost(t, h.Trigger, "/api/refresh")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Refresh already running", envelopeError(t, body))

	close(release)
	drainTerminal(t, updates)
}

func TestGetRefreshStatusIdle(t *testing.T) {
	h, _ := newRefreshHandler(noopRunner())

	rec, body := doGet(t, h.GetStatus, "/api/refresh/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := envelopeData(t, body)
	assert.Equal(t, false, data["running"])
	assert.Equal(t, "idle", data["last_status"])
	assert.NotContains(t, data, "started_at")
}

func TestGetRefreshStatusAfterRun(t *testing.T) {
	h, sup := newRefreshHandler(noopRunner())
	updates := sup.Subscribe()
	require.NoError(t, sup.Trigger())
	drainTerminal(t, updates)
	sup.Unsubscribe(updates)

	rec, body := doGet(t, h.GetStatus, "/api/refresh/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	data := envelopeData(t, body)
	assert.Equal(t, false, data["running"])
	assert.Equal(t, "success", data["last_status"])
	assert.Contains(t, data, "started_at")
	assert.Contains(t, data, "finished_at")
}

func TestStreamStatus(t *testing.T) {
	runner := refresh.RunnerFunc(func(ctx context.Context, report refresh.ProgressFunc) error {
		report(contracts.RefreshProgress{Stage: "fetching", IndicesDone: 1, TotalIndices: 2})
		return nil
	})
	h, sup := newRefreshHandler(runner)

	srv := httptest.NewServer(http.HandlerFunc(h.StreamStatus))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// The current status arrives first, before any trigger.
	var status contracts.RefreshStatus
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, contracts.RefreshIdle, status.LastStatus)
	assert.False(t, status.Running)

	require.NoError(t, sup.Trigger())

	var stages []string
	for {
		require.NoError(t, conn.ReadJSON(&status))
		stages = append(stages, status.Progress.Stage)
		if status.LastStatus.Terminal() {
			break
		}
	}
	assert.Equal(t, contracts.RefreshSuccess, status.LastStatus)
	assert.False(t, status.Running)
	assert.Equal(t, []string{"starting", "fetching", "done"}, stages)
}
