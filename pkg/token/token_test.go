package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lborres/shopfront/core"
)

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-side-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestDecode(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   core.Principal
	}{
		{
			name:   "well-known claim names",
			claims: jwt.MapClaims{NameClaim: "alice", RoleClaim: "Admin", "exp": exp},
			want:   core.Principal{Identity: "alice", Role: "Admin"},
		},
		{
			name:   "short claim names",
			claims: jwt.MapClaims{"unique_name": "bob", "role": "Customer", "exp": exp},
			want:   core.Principal{Identity: "bob", Role: "Customer"},
		},
		{
			name:   "subject fallback",
			claims: jwt.MapClaims{"sub": "carol", "exp": exp},
			want:   core.Principal{Identity: "carol"},
		},
		{
			name:   "multi-role array takes first",
			claims: jwt.MapClaims{NameClaim: "dave", RoleClaim: []any{"Admin", "Customer"}, "exp": exp},
			want:   core.Principal{Identity: "dave", Role: "Admin"},
		},
		{
			name:   "well-known name wins over sub",
			claims: jwt.MapClaims{NameClaim: "erin", "sub": "42", "exp": exp},
			want:   core.Principal{Identity: "erin"},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			credential := sign(t, test.claims)

			// Act
			got, err := Decode(credential)

			// Assert
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != test.want {
				t.Errorf("Decode() = %+v, want %+v", got, test.want)
			}
		})
	}
}

// Requirement: structurally invalid credentials yield ErrDecode, never a panic
func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name       string
		credential string
	}{
		{name: "empty", credential: ""},
		{name: "garbage", credential: "not-a-token"},
		{name: "two segments", credential: "abc.def"},
		{name: "bad base64 payload", credential: "eyJhbGciOiJIUzI1NiJ9.%%%.sig"},
		{name: "payload not json", credential: "eyJhbGciOiJIUzI1NiJ9.bm90anNvbg.sig"},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			_, err := Decode(test.credential)

			// Assert
			if !errors.Is(err, core.ErrDecode) {
				t.Errorf("Decode() error = %v, want ErrDecode", err)
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name       string
		credential func(t *testing.T) string
		want       bool
	}{
		{
			name:       "future expiry",
			credential: func(t *testing.T) string { return sign(t, jwt.MapClaims{"exp": now.Unix() + 60}) },
			want:       false,
		},
		{
			name:       "past expiry",
			credential: func(t *testing.T) string { return sign(t, jwt.MapClaims{"exp": now.Unix() - 60}) },
			want:       true,
		},
		{
			name:       "expiry equal to now is expired",
			credential: func(t *testing.T) string { return sign(t, jwt.MapClaims{"exp": now.Unix()}) },
			want:       true,
		},
		{
			name:       "missing exp is expired",
			credential: func(t *testing.T) string { return sign(t, jwt.MapClaims{"sub": "x"}) },
			want:       true,
		},
		{
			name:       "malformed is expired",
			credential: func(t *testing.T) string { return "garbage" },
			want:       true,
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			got := IsExpired(test.credential(t), now)

			// Assert
			if got != test.want {
				t.Errorf("IsExpired() = %v, want %v", got, test.want)
			}
		})
	}
}

func TestExpiresAt(t *testing.T) {
	// Arrange
	credential := sign(t, jwt.MapClaims{"exp": int64(1_700_000_123)})

	// Act
	got, err := ExpiresAt(credential)

	// Assert
	if err != nil {
		t.Fatalf("ExpiresAt() error = %v", err)
	}
	if !got.Equal(time.Unix(1_700_000_123, 0)) {
		t.Errorf("ExpiresAt() = %v, want %v", got, time.Unix(1_700_000_123, 0))
	}
}
