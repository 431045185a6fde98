package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lborres/shopfront/pkg/token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// credential signs a bearer credential for identity and role that expires
// after ttl. Signatures are never verified client-side.
func credential(t *testing.T, identity, role string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		token.NameClaim: identity,
		"exp":           time.Now().Add(ttl).Unix(),
	}
	if role != "" {
		claims[token.RoleClaim] = role
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-side-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

// loginAs returns a booted session store signed in as identity with role.
func loginAs(t *testing.T, storage *FakeStorage, identity, role string) *SessionStore {
	t.Helper()
	cred := credential(t, identity, role, time.Hour)
	api := &FakeAPI{LoginFn: func(context.Context, string, string) (string, error) { return cred, nil }}
	session := NewSessionStore(api, storage, discardLogger())
	if _, err := session.Login(context.Background(), identity, "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	return session
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}
