package statusapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ees/internal/domain"
	"github.com/ajitpratap0/ees/internal/market"
)

type fakeSource struct {
	state      domain.SessionState
	hasState   bool
	stateErr   error
	positions  []domain.Position
	posErr     error
	providers  []market.ProviderHealth
	providerErr error
}

func (f fakeSource) SessionState(ctx context.Context) (domain.SessionState, bool, error) {
	return f.state, f.hasState, f.stateErr
}

func (f fakeSource) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	return f.positions, f.posErr
}

func (f fakeSource) ProviderStatus(ctx context.Context) ([]market.ProviderHealth, error) {
	return f.providers, f.providerErr
}

func TestHandleHealth(t *testing.T) {
	s := NewServer(Config{Source: fakeSource{}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleSession_NotYetRecorded(t *testing.T) {
	s := NewServer(Config{Source: fakeSource{hasState: false}})

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSession_ReturnsState(t *testing.T) {
	state := domain.SessionState{TradingDate: "2026-07-30", Phase: domain.PhaseOpen}
	s := NewServer(Config{Source: fakeSource{state: state, hasState: true}})

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.SessionState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, state.TradingDate, got.TradingDate)
	assert.Equal(t, state.Phase, got.Phase)
}

func TestHandlePositions_PropagatesError(t *testing.T) {
	s := NewServer(Config{Source: fakeSource{posErr: fmt.Errorf("trailing engine not available")}})

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleProviders_ReturnsList(t *testing.T) {
	s := NewServer(Config{Source: fakeSource{providers: []market.ProviderHealth{{Name: "polygon", BreakerState: "closed"}}}})

	req := httptest.NewRequest(http.MethodGet, "/providers", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Providers []market.ProviderHealth `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Providers, 1)
	assert.Equal(t, "polygon", body.Providers[0].Name)
}
