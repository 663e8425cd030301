package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "sentinel"
	defaultTokenTTL = 24 * time.Hour
)

var errNoBearer = errors.New("missing bearer token")

// sessionClaims are the claims carried by every session token.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// sessions issues and verifies HS256 session tokens.
type sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func newSessions(secret string) sessions {
	return sessions{secret: []byte(secret), ttl: defaultTokenTTL, now: time.Now}
}

// issue returns a token for userID and its expiry.
func (s sessions) issue(userID int) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// verify returns the user id a valid token was issued for.
func (s sessions) verify(raw string) (int, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, err
	}
	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID < 1 {
		return 0, errors.New("invalid subject")
	}
	return userID, nil
}

// middleware rejects requests without a valid bearer token and stores the
// caller's id in the request context.
func (s sessions) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, err := s.verify(raw)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), contextSubjectKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth constructs the authentication middleware shared by routers.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return newSessions(jwtSecret).middleware
}

func bearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errNoBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errNoBearer
	}
	return token, nil
}
