package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential indicates no usable bearer token is available. Callers must
// treat this as a pre-flight failure and skip the network entirely.
var ErrNoCredential = errors.New("no credential available")

// Identity is the client-side view of the authenticated user, extracted from
// the persisted bearer token. The client holds no signing secret, so claims
// are read without signature verification; the server remains the authority.
type Identity struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// Source hands out the persisted bearer token and the identity encoded in it.
type Source struct {
	token string
	now   func() time.Time
}

// NewSource wraps a raw bearer token loaded from configuration or storage.
func NewSource(token string) *Source {
	return &Source{token: strings.TrimSpace(token), now: time.Now}
}

// Token returns the bearer token, or ErrNoCredential when none is stored or
// the stored one has expired.
func (s *Source) Token() (string, error) {
	if s == nil || s.token == "" {
		return "", ErrNoCredential
	}

	identity, err := ParseIdentity(s.token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCredential, err)
	}

	if !identity.ExpiresAt.IsZero() && !s.now().Before(identity.ExpiresAt) {
		return "", fmt.Errorf("%w: token expired", ErrNoCredential)
	}

	return s.token, nil
}

// Identity parses the stored token's claims.
func (s *Source) Identity() (Identity, error) {
	if s == nil || s.token == "" {
		return Identity{}, ErrNoCredential
	}
	return ParseIdentity(s.token)
}

// ParseIdentity extracts the user id, role and expiry from a JWT without
// verifying its signature.
func ParseIdentity(token string) (Identity, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("malformed token: %w", err)
	}

	identity := Identity{
		UserID: extractUserID(claims),
		Role:   extractRole(claims),
	}

	if identity.UserID == "" {
		return Identity{}, errors.New("token carries no subject")
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}

	return identity, nil
}

func extractUserID(claims jwt.MapClaims) string {
	keys := []string{"sub", "user_id", "id"}
	for _, key := range keys {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if id := normalizeUserID(value); id != "" {
			return id
		}
	}
	return ""
}

func normalizeUserID(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v < 0 {
			return ""
		}
		return strconv.FormatUint(uint64(v), 10)
	case int:
		if v < 0 {
			return ""
		}
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func extractRole(claims jwt.MapClaims) string {
	candidates := []string{"role", "roles"}
	for _, key := range candidates {
		if value, ok := claims[key]; ok {
			if role := normalizeRole(value); role != "" {
				return role
			}
		}
	}
	return ""
}

func normalizeRole(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(v))
	case []interface{}:
		for _, item := range v {
			if str, ok := item.(string); ok {
				role := strings.ToLower(strings.TrimSpace(str))
				if role != "" {
					return role
				}
			}
		}
	}
	return ""
}
