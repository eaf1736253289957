package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

// AuthConfig holds the JWT validation parameters for the user-facing
// endpoints. Device reporting endpoints authenticate with the device
// token instead.
type AuthConfig struct {
	Secret   string `mapstructure:"secret"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

var errMissingSubject = errors.New("token has no subject")

func authMiddleware(cfg AuthConfig) (func(http.Handler) http.Handler, error) {
	keyFunc := func(ctx context.Context) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}
	v, err := validator.New(
		keyFunc,
		validator.HS256,
		cfg.Issuer,
		[]string{cfg.Audience},
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, err
	}
	return jwtmiddleware.New(v.ValidateToken).CheckJWT, nil
}

// userID returns the subject of the validated token on the request.
func userID(r *http.Request) (string, error) {
	claims, ok := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)
	if !ok || claims.RegisteredClaims.Subject == "" {
		return "", errMissingSubject
	}
	return claims.RegisteredClaims.Subject, nil
}
