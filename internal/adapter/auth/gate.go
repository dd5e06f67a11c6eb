package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
)

type TokenVerifier interface {
	Verify(token string) (domain.Principal, error)
}

// RevocationChecker reports whether a token was revoked before its expiry.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Gate authenticates handshake requests.
type Gate struct {
	verifier    TokenVerifier
	revocations RevocationChecker
}

// NewGate builds a gate. revocations may be nil.
func NewGate(verifier TokenVerifier, revocations RevocationChecker) *Gate {
	return &Gate{verifier: verifier, revocations: revocations}
}

// Authenticate resolves the principal behind r. Errors wrap ErrMissingToken,
// ErrInvalidToken or ErrTokenRevoked. A revocation store outage is logged and
// the token is accepted.
func (g *Gate) Authenticate(r *http.Request) (domain.Principal, error) {
	token := ExtractToken(r)
	if token == "" {
		return domain.Principal{}, domain.ErrMissingToken
	}

	principal, err := g.verifier.Verify(token)
	if err != nil {
		return domain.Principal{}, err
	}

	if g.revocations != nil {
		revoked, err := g.revocations.IsRevoked(r.Context(), token)
		switch {
		case err != nil:
			slog.WarnContext(r.Context(), "Revocation check failed, accepting token", "user_id", principal.UserID, "error", err)
		case revoked:
			return domain.Principal{}, fmt.Errorf("%w: user %s", domain.ErrTokenRevoked, principal.UserID)
		}
	}

	return principal, nil
}

// ExtractToken returns the ?token= query parameter, falling back to an
// "Authorization: Bearer" header.
func ExtractToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}

	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Reason is the client-facing text for an authentication failure.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingToken):
		return "Authentication required"
	case errors.Is(err, domain.ErrTokenRevoked):
		return "Token revoked"
	default:
		return "Invalid token"
	}
}
