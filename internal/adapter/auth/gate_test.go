package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRevocations struct {
	revoked map[string]bool
	err     error
	calls   int
}

func (s *stubRevocations) IsRevoked(_ context.Context, token string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.revoked[token], nil
}

func newTestGate(t *testing.T, revocations RevocationChecker) (*Gate, string) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	token, err := NewSigner(testSecret, "", clock).Sign(domain.Principal{UserID: "u-7", Role: domain.RoleMinistre}, time.Hour)
	require.NoError(t, err)
	return NewGate(NewJWTVerifier(testSecret, "", clock), revocations), token
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		header string
		want   string
	}{
		{"query", "/ws?token=abc", "", "abc"},
		{"query wins over header", "/ws?token=abc", "Bearer xyz", "abc"},
		{"bearer header", "/ws", "Bearer xyz", "xyz"},
		{"lowercase scheme", "/ws", "bearer xyz", "xyz"},
		{"basic auth ignored", "/ws", "Basic dXNlcjpwYXNz", ""},
		{"scheme only", "/ws", "Bearer", ""},
		{"nothing", "/ws", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, ExtractToken(r))
		})
	}
}

func TestGate_Authenticate(t *testing.T) {
	gate, token := newTestGate(t, nil)

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)

	p, err := gate.Authenticate(r)
	require.NoError(t, err)
	assert.Equal(t, "u-7", p.UserID)
	assert.Equal(t, domain.RoleMinistre, p.Role)
}

func TestGate_MissingToken(t *testing.T) {
	gate, _ := newTestGate(t, nil)

	_, err := gate.Authenticate(httptest.NewRequest(http.MethodGet, "/ws", nil))
	require.ErrorIs(t, err, domain.ErrMissingToken)
	assert.Equal(t, "Authentication required", Reason(err))
}

func TestGate_InvalidToken(t *testing.T) {
	gate, _ := newTestGate(t, nil)

	_, err := gate.Authenticate(httptest.NewRequest(http.MethodGet, "/ws?token=forged", nil))
	require.ErrorIs(t, err, domain.ErrInvalidToken)
	assert.Equal(t, "Invalid token", Reason(err))
}

func TestGate_RevokedToken(t *testing.T) {
	revocations := &stubRevocations{revoked: map[string]bool{}}
	gate, token := newTestGate(t, revocations)
	revocations.revoked[token] = true

	_, err := gate.Authenticate(httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	require.ErrorIs(t, err, domain.ErrTokenRevoked)
	assert.Equal(t, "Token revoked", Reason(err))
}

func TestGate_RevocationOutageFailsOpen(t *testing.T) {
	revocations := &stubRevocations{err: errors.New("circuit breaker open")}
	gate, token := newTestGate(t, revocations)

	p, err := gate.Authenticate(httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))
	require.NoError(t, err)
	assert.Equal(t, "u-7", p.UserID)
	assert.Equal(t, 1, revocations.calls)
}

func TestGate_InvalidTokenSkipsRevocationLookup(t *testing.T) {
	revocations := &stubRevocations{}
	gate, _ := newTestGate(t, revocations)

	_, err := gate.Authenticate(httptest.NewRequest(http.MethodGet, "/ws?token=forged", nil))
	require.Error(t, err)
	assert.Zero(t, revocations.calls)
}
