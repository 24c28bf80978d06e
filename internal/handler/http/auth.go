package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password
var ErrInvalidCredentials = errors.New("incorrect username or password")

// AuthConfig holds dashboard authentication configuration
type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
	Users    map[string]string // username -> bcrypt hash
}

// Authenticator issues and verifies HS256 bearer tokens for the dashboard users
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	users  map[string]string
	now    func() time.Time
}

// NewAuthenticator creates an authenticator. Usernames are case-insensitive.
func NewAuthenticator(config AuthConfig) (*Authenticator, error) {
	if config.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	users := make(map[string]string, len(config.Users))
	for name, hash := range config.Users {
		users[strings.ToLower(name)] = hash
	}
	return &Authenticator{
		secret: []byte(config.Secret),
		ttl:    config.TokenTTL,
		users:  users,
		now:    time.Now,
	}, nil
}

// Login checks a password against the stored bcrypt hash and returns a signed token
func (a *Authenticator) Login(username, password string) (string, error) {
	username = strings.ToLower(username)
	hash, ok := a.users[username]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.Issue(username)
}

// Issue signs a token for username
func (a *Authenticator) Issue(username string) (string, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Verify parses a token and returns its subject
func (a *Authenticator) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	if _, ok := a.users[claims.Subject]; !ok {
		return "", fmt.Errorf("invalid token: unknown user %q", claims.Subject)
	}
	return claims.Subject, nil
}

type userKey struct{}

// UserFromContext returns the authenticated username set by RequireAuth
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey{}).(string)
	return user, ok
}

// RequireAuth rejects requests without a valid bearer token
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			unauthorized(w, "not authenticated")
			return
		}

		user, err := a.Verify(token)
		if err != nil {
			unauthorized(w, "could not validate credentials")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "{\"error\":%q}\n", message)
}
