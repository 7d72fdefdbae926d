package statusserver

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samara-dev/mindstream/telemetry"
)

func TestHealthzReturnsOK(t *testing.T) {
	srv := New(zerolog.Nop(), telemetry.New(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyReportsFailureFromChecker(t *testing.T) {
	srv := New(zerolog.Nop(), telemetry.New(), func() error { return errors.New("redis down") })
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatsReflectsRegistry(t *testing.T) {
	registry := telemetry.New()
	registry.EventsToday.Add(7)
	srv := New(zerolog.Nop(), registry, nil)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"events_today":7`)
}
