package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/fanbasehq/harvest-cli/internal/config"
	"github.com/fanbasehq/harvest-cli/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalMins: 1, LookbackHours: 24}
	checker := NewChecker(NewCollector(&mockRuns{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(&mockRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.Equal(t, time.Hour, checker.interval)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)

	checker = NewChecker(NewCollector(&mockRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{CheckIntervalMins: 15})
	assert.Equal(t, 15*time.Minute, checker.interval)
}

func TestChecker_RunChecksImmediately(t *testing.T) {
	runs := &mockRuns{}
	cfg := config.MonitoringConfig{CheckIntervalMins: 60, LookbackHours: 24}
	checker := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return runs.calls.Load() > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = ts.URL
	cfg.LookbackHours = 24 * 7

	today := time.Now().UTC().Truncate(24 * time.Hour)
	runs := &mockRuns{runs: []model.Run{
		completed(today, 0, 0),
		completed(today.AddDate(0, 0, -1), 0, 0),
		completed(today.AddDate(0, 0, -2), 0, 0),
	}}

	checker := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg)
	alerts := checker.Check(context.Background())

	if assert.Len(t, alerts, 1) {
		assert.Equal(t, AlertZeroResults, alerts[0].Type)
	}
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_CheckCollectError(t *testing.T) {
	cfg := testMonitoringConfig()
	checker := NewChecker(NewCollector(&mockRuns{listErr: eris.New("boom")}), NewAlerter(cfg), cfg)
	assert.Nil(t, checker.Check(context.Background()))
}
