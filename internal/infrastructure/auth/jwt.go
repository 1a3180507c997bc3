// Copyright Verve Advisory and each contributor.
// SPDX-License-Identifier: MIT

// Package auth validates bearer tokens on the administrative HTTP endpoints.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"

	"github.com/verveadvisory/breakout-tracker-service/internal/logging"
)

const (
	// DefaultJWKSURL is the default JWKS endpoint of the identity provider sidecar.
	DefaultJWKSURL = "http://localhost:4457/.well-known/jwks"
	// DefaultAudience is the default JWT audience for this service.
	DefaultAudience = "breakout-tracker-service"

	jwksCacheTTL = 5 * time.Minute
)

// principalContextKey is the context key under which the authenticated
// principal is stored.
type principalContextKey struct{}

// JWTAuthConfig configures JWT validation.
type JWTAuthConfig struct {
	JWKSURL  string
	Audience string
	// MockLocalPrincipal bypasses token validation and uses the given
	// principal for every request. Local development only.
	MockLocalPrincipal string
}

// JWTAuth validates bearer tokens against the configured JWKS endpoint.
type JWTAuth struct {
	config    JWTAuthConfig
	validator *validator.Validator
}

// NewJWTAuth creates a new JWT authenticator.
func NewJWTAuth(config JWTAuthConfig) (*JWTAuth, error) {
	if config.JWKSURL == "" {
		config.JWKSURL = DefaultJWKSURL
	}
	if config.Audience == "" {
		config.Audience = DefaultAudience
	}

	issuerURL, err := url.Parse(config.JWKSURL)
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS URL: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, jwksCacheTTL)
	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuerURL.String(),
		[]string{config.Audience},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up JWT validator: %w", err)
	}

	return &JWTAuth{
		config:    config,
		validator: jwtValidator,
	}, nil
}

// ParsePrincipal validates a bearer token and returns the principal it
// carries. In mock mode the configured principal is returned without
// validation.
func (a *JWTAuth) ParsePrincipal(ctx context.Context, token string) (string, error) {
	if a.config.MockLocalPrincipal != "" {
		return a.config.MockLocalPrincipal, nil
	}

	if a.validator == nil {
		return "", errors.New("JWT validator is not set up")
	}

	parsed, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := parsed.(*validator.ValidatedClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}
	if claims.RegisteredClaims.Subject == "" {
		return "", errors.New("token subject must be provided")
	}

	return claims.RegisteredClaims.Subject, nil
}

// Middleware authenticates requests with a Bearer token and stores the
// principal in the request context. Requests without a valid token get 401.
func (a *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil && a.config.MockLocalPrincipal == "" {
			writeUnauthorized(w)
			return
		}

		principal, err := a.ParsePrincipal(r.Context(), token)
		if err != nil {
			slog.WarnContext(r.Context(), "rejected unauthenticated request",
				"path", r.URL.Path, logging.ErrKey, err)
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
		ctx = logging.AppendCtx(ctx, slog.String("principal", principal))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(string)
	return principal, ok
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errors.New("missing Authorization header")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("Authorization header must be a Bearer token")
	}
	return parts[1], nil
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
