package container

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackharness/internal/failure"
)

// scriptedProbe returns each queued response in order, repeating the last.
type scriptedProbe struct {
	bodies []string
	errs   []error
	checks int
}

func (p *scriptedProbe) Check(_ context.Context) (string, error) {
	i := p.checks
	if i >= len(p.bodies) {
		i = len(p.bodies) - 1
	}
	p.checks++
	return p.bodies[i], p.errs[i]
}

func TestWaitHealthy_SucceedsImmediately(t *testing.T) {
	probe := &scriptedProbe{bodies: []string{HealthyBody}, errs: []error{nil}}

	var sleeps int
	err := WaitHealthy(context.Background(), probe, PollConfig{Attempts: 60, Interval: time.Second},
		func(time.Duration) { sleeps++ })

	require.NoError(t, err)
	assert.Equal(t, 1, probe.checks)
	assert.Zero(t, sleeps, "no sleep after a healthy first probe")
}

func TestWaitHealthy_SecondAttemptSucceeds(t *testing.T) {
	probe := &scriptedProbe{
		bodies: []string{"", HealthyBody},
		errs:   []error{errors.New("connection refused"), nil},
	}

	var sleeps int
	err := WaitHealthy(context.Background(), probe, PollConfig{Attempts: 60, Interval: time.Second},
		func(time.Duration) { sleeps++ })

	require.NoError(t, err)
	assert.Equal(t, 2, probe.checks)
	assert.Equal(t, 1, sleeps)
}

func TestWaitHealthy_ExactBodyRequired(t *testing.T) {
	probe := &scriptedProbe{bodies: []string{`{"status":"ok"}`}, errs: []error{nil}}

	err := WaitHealthy(context.Background(), probe, PollConfig{Attempts: 3, Interval: time.Millisecond},
		func(time.Duration) {})

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.ReadinessTimeout))
	assert.Equal(t, 3, probe.checks)
}

func TestWaitHealthy_RespectsAttemptBound(t *testing.T) {
	probe := &scriptedProbe{bodies: []string{""}, errs: []error{errors.New("refused")}}

	var sleeps int
	err := WaitHealthy(context.Background(), probe, PollConfig{Attempts: 60, Interval: time.Second},
		func(time.Duration) { sleeps++ })

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.ReadinessTimeout))
	assert.Equal(t, 60, probe.checks, "must make at most the documented bound of attempts")
	assert.Equal(t, 59, sleeps, "no sleep after the final attempt")
}

func TestWaitHealthy_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	probe := &scriptedProbe{bodies: []string{HealthyBody}, errs: []error{nil}}
	err := WaitHealthy(ctx, probe, PollConfig{Attempts: 60, Interval: time.Second}, func(time.Duration) {})

	require.Error(t, err)
	assert.True(t, failure.IsKind(err, failure.ReadinessTimeout))
	assert.Zero(t, probe.checks)
}

func TestHTTPProbe_Check(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(HealthyBody + "\n"))
	}))
	defer server.Close()

	probe := NewHTTPProbe(server.URL + "/v1/health")
	body, err := probe.Check(context.Background())

	require.NoError(t, err)
	assert.Equal(t, HealthyBody, body, "trailing whitespace is trimmed before comparison")
}

func TestHTTPProbe_Check_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "starting up", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	probe := NewHTTPProbe(server.URL + "/v1/health")
	_, err := probe.Check(context.Background())

	assert.Error(t, err)
}
