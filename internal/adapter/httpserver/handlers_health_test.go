package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/radudiaconu0/sockudo/internal/platform/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthOK(_ context.Context) error { return nil }

func healthErr(msg string) func(context.Context) error {
	return func(_ context.Context) error { return errors.New(msg) }
}

func TestHandleStartup(t *testing.T) {
	srv := newTestServer(t, withHealthChecks(HealthCheck{Name: "app_source", Check: healthOK}))

	rec := srv.do(t, http.MethodGet, "/health/startup", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"app_source":"ok"}}`, rec.Body.String())
}

func TestHandleLiveness(t *testing.T) {
	srv := newTestServer(t, withHealthChecks(HealthCheck{Name: "redis", Check: healthErr("down")}))

	rec := srv.do(t, http.MethodGet, "/health/live", "")

	require.Equal(t, http.StatusOK, rec.Code, "liveness ignores dependency checks")
	var report livenessReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, version.Version, report.Version)
	assert.GreaterOrEqual(t, report.Uptime, 0.0)
}

func TestHandleReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantBody   string
	}{
		{
			name:       "no checks",
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready"}`,
		},
		{
			name: "all healthy",
			checks: []HealthCheck{
				{Name: "postgres", Check: healthOK},
				{Name: "namespaces", Check: healthOK},
			},
			wantStatus: http.StatusOK,
			wantBody:   `{"status":"ready","checks":{"postgres":"ok","namespaces":"ok"}}`,
		},
		{
			name: "postgres down",
			checks: []HealthCheck{
				{Name: "postgres", Check: healthErr("database unreachable")},
				{Name: "namespaces", Check: healthOK},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unhealthy","checks":{"postgres":"database unreachable","namespaces":"ok"}}`,
		},
		{
			name: "every failure reported",
			checks: []HealthCheck{
				{Name: "sqlite", Check: healthOK},
				{Name: "redis", Check: healthErr("connection refused")},
				{Name: "namespaces", Check: healthErr("namespace app1: stopped")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   `{"status":"unhealthy","checks":{"sqlite":"ok","redis":"connection refused","namespaces":"namespace app1: stopped"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, withHealthChecks(tt.checks...))

			rec := srv.do(t, http.MethodGet, "/health/ready", "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestHandleReadiness_ChecksHonorTimeout(t *testing.T) {
	blocking := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	srv := newTestServer(t, withHealthChecks(HealthCheck{Name: "slow", Check: blocking}))

	rec := srv.do(t, http.MethodGet, "/health/startup", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "deadline exceeded")
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/version", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var info version.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, version.Get(), info)
}
