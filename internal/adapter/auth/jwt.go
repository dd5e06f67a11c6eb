package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/okatech-org/sgg.ga-sub004/internal/domain"
)

var hmacMethods = []string{
	jwt.SigningMethodHS256.Alg(),
	jwt.SigningMethodHS384.Alg(),
	jwt.SigningMethodHS512.Alg(),
}

// Claims is the token payload issued by the platform API.
type Claims struct {
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	InstitutionID string `json:"institutionId,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) principal() domain.Principal {
	return domain.Principal{
		UserID:        c.UserID,
		Email:         c.Email,
		Role:          domain.ParseRole(c.Role),
		InstitutionID: c.InstitutionID,
	}
}

// JWTVerifier validates HMAC-signed bearer tokens.
type JWTVerifier struct {
	secret []byte
	issuer string
	clock  clockwork.Clock
}

// NewJWTVerifier returns a verifier for secret. An empty issuer disables the iss check.
func NewJWTVerifier(secret []byte, issuer string, clock clockwork.Clock) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer, clock: clock}
}

// Verify checks signature, algorithm, expiry and issuer, then requires userId and role.
// Every failure wraps domain.ErrInvalidToken.
func (v *JWTVerifier) Verify(token string) (domain.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(hmacMethods),
		jwt.WithTimeFunc(v.clock.Now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}

	if claims.UserID == "" || claims.Role == "" {
		return domain.Principal{}, fmt.Errorf("%w: userId and role claims are required", domain.ErrInvalidToken)
	}

	return claims.principal(), nil
}

// ExpiresAt reads the exp claim without checking the signature. It is only
// used to size revocation entries for tokens that were already verified.
func ExpiresAt(token string) (time.Time, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, fmt.Errorf("parse token: %w", err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no exp claim")
	}
	return claims.ExpiresAt.Time, nil
}

// Signer issues tokens in the format JWTVerifier accepts.
type Signer struct {
	secret []byte
	issuer string
	clock  clockwork.Clock
}

func NewSigner(secret []byte, issuer string, clock clockwork.Clock) *Signer {
	return &Signer{secret: secret, issuer: issuer, clock: clock}
}

// Sign issues an HS256 token for p that expires after ttl.
func (s *Signer) Sign(p domain.Principal, ttl time.Duration) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		UserID:        p.UserID,
		Email:         p.Email,
		Role:          string(p.Role),
		InstitutionID: p.InstitutionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
