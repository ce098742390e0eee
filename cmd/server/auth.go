package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/Simplici0/watchdesk/internal/store"
)

const (
	sessionCookieName = "watchdesk_session"
	sessionMaxAge     = 12 * time.Hour
)

type authService struct {
	users         *store.UserRepo
	sessionSecret []byte
	now           func() time.Time
}

func newAuthService(users *store.UserRepo, sessionSecret []byte) *authService {
	return &authService{users: users, sessionSecret: sessionSecret, now: time.Now}
}

func (a *authService) validateCredentials(ctx context.Context, email, password string) (bool, error) {
	hash, err := a.users.PasswordHash(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user credentials: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("compare password hash: %w", err)
	}
	return true, nil
}

// createSessionValue signs "email|issued-unix".
func (a *authService) createSessionValue(email string) string {
	raw := email + "|" + strconv.FormatInt(a.now().Unix(), 10)
	payload := base64.RawURLEncoding.EncodeToString([]byte(raw))
	return payload + "." + a.sign(payload)
}

func (a *authService) verifySessionValue(value string) (string, bool) {
	payload, signature, ok := strings.Cut(value, ".")
	if !ok {
		return "", false
	}
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return "", false
	}
	expected, _ := hex.DecodeString(a.sign(payload))
	if !hmac.Equal(provided, expected) {
		return "", false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}
	email, issued, ok := strings.Cut(string(decoded), "|")
	if !ok || email == "" {
		return "", false
	}
	unix, err := strconv.ParseInt(issued, 10, 64)
	if err != nil || a.now().Sub(time.Unix(unix, 0)) > sessionMaxAge {
		return "", false
	}
	return email, true
}

func (a *authService) sign(payload string) string {
	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *authService) setSessionCookie(w http.ResponseWriter, email string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    a.createSessionValue(email),
		Path:     "/",
		MaxAge:   int(sessionMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *authService) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type userKey struct{}

func userFrom(ctx context.Context) string {
	email, _ := ctx.Value(userKey{}).(string)
	return email
}

// requireSession rejects requests without a valid session cookie.
func (a *authService) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			writeError(w, r, errUnauthenticated)
			return
		}
		email, ok := a.verifySessionValue(cookie.Value)
		if !ok {
			writeError(w, r, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, email)))
	})
}
