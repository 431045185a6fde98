// Package token decodes bearer credentials on the client side.
//
// The client holds no signing key, so claims are read without signature
// verification. The server remains the authority on every request; the
// decoded principal only drives local state and navigation.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lborres/shopfront/core"
)

// Well-known claim names issued by the REST collaborator.
const (
	RoleClaim = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	NameClaim = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
)

var (
	roleClaims = []string{RoleClaim, "role"}
	nameClaims = []string{NameClaim, "unique_name", "sub"}
)

var parser = jwt.NewParser()

func parse(credential string) (jwt.MapClaims, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: empty credential", core.ErrDecode)
	}

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(credential, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDecode, err)
	}

	return claims, nil
}

// Decode extracts the principal from credential. Structurally invalid
// credentials return an error wrapping core.ErrDecode.
func Decode(credential string) (core.Principal, error) {
	claims, err := parse(credential)
	if err != nil {
		return core.Principal{}, err
	}

	return core.Principal{
		Identity: firstString(claims, nameClaims),
		Role:     firstString(claims, roleClaims),
	}, nil
}

// ExpiresAt returns the embedded expiry instant.
func ExpiresAt(credential string) (time.Time, error) {
	claims, err := parse(credential)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", core.ErrDecode, err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp claim", core.ErrDecode)
	}

	return exp.Time, nil
}

// IsExpired reports whether credential has expired at now. An expiry equal
// to now counts as expired, as does a credential whose expiry cannot be read.
func IsExpired(credential string, now time.Time) bool {
	exp, err := ExpiresAt(credential)
	if err != nil {
		return true
	}
	return !exp.After(now)
}

// A multi-role credential carries an array; the first entry wins.
func firstString(claims jwt.MapClaims, names []string) string {
	for _, name := range names {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}
