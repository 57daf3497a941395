package httpapi

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
)

// Authenticator verifies HS256 bearer tokens whose subject is the agent id.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewAuthenticator builds a verifier. An empty issuer accepts any issuer.
func NewAuthenticator(secret []byte, issuer string, now func() time.Time) (*Authenticator, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if now == nil {
		now = time.Now
	}
	return &Authenticator{secret: secret, issuer: strings.TrimSpace(issuer), now: now}, nil
}

// AgentID returns the authenticated agent for an Authorization header value.
func (a *Authenticator) AgentID(authorization string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "bearer token is required")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if a.issuer != "" {
		options = append(options, jwt.WithIssuer(a.issuer))
	}
	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(strings.TrimSpace(token), &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, options...); err != nil {
		return "", mapJWTError(err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", apperrors.New(apperrors.CodeUnauthenticated, "token subject is required")
	}
	return subject, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token is expired", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token signature is invalid", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token issuer mismatch", err)
	default:
		return apperrors.Wrap(apperrors.CodeUnauthenticated, "token is invalid", err)
	}
}
