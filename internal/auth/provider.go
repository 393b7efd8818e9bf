// Package auth supplies request header providers for gateway calls.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HeaderProvider returns the headers to attach to an outbound gateway
// request. It is called once per request, so providers may mint short-lived
// credentials.
type HeaderProvider func() (map[string]string, error)

// Static identifies the caller with the X-Username header only.
func Static(username string) HeaderProvider {
	return func() (map[string]string, error) {
		return map[string]string{"X-Username": username}, nil
	}
}

// Claims are the JWT claims minted by the JWT provider.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// JWT identifies the caller with X-Username plus an HS256 bearer token
// minted per request. A nil clock uses time.Now.
func JWT(username, secret string, ttl time.Duration, clock func() time.Time) HeaderProvider {
	if clock == nil {
		clock = time.Now
	}
	return func() (map[string]string, error) {
		now := clock()
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   username,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
			Username: username,
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			return nil, fmt.Errorf("sign token: %w", err)
		}
		return map[string]string{
			"X-Username":    username,
			"Authorization": "Bearer " + token,
		}, nil
	}
}

// WithHeader wraps a provider with one additional fixed header.
func WithHeader(base HeaderProvider, name, value string) HeaderProvider {
	return func() (map[string]string, error) {
		headers, err := base()
		if err != nil {
			return nil, err
		}
		headers[name] = value
		return headers, nil
	}
}
