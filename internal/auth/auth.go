// Package auth resolves API keys to identities and checks their roles.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Roles, from least to most privileged. An admin may do anything a
// reader may.
const (
	RoleReader = "studio_reader"
	RoleAdmin  = "studio_admin"
)

var ErrForbidden = errors.New("forbidden")

type Identity struct {
	Principal string
	Roles     []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

// Allows reports whether the identity may act with role.
func (i Identity) Allows(role string) bool {
	return i.HasRole(role) || i.HasRole(RoleAdmin)
}

// Authorize checks the identity attached to ctx. Requests without an
// identity pass; they only exist when authentication is disabled.
func Authorize(ctx context.Context, role string) error {
	identity, ok := IdentityFromContext(ctx)
	if !ok || identity.Allows(role) {
		return nil
	}
	return fmt.Errorf("%w: %s lacks role %q", ErrForbidden, identity.Principal, role)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticKeys is a validator built from STUDIO_AUTH_STATIC_KEYS, a comma
// separated list of "key:principal:role|role" entries.
type StaticKeys struct {
	entries []staticEntry
}

type staticEntry struct {
	secret   []byte
	identity Identity
}

func ParseStaticKeys(value string) (*StaticKeys, error) {
	keys := &StaticKeys{}
	seen := make(map[string]bool)
	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		entry, err := parseStaticEntry(raw)
		if err != nil {
			return nil, err
		}
		if seen[string(entry.secret)] {
			return nil, fmt.Errorf("key for %q is configured twice", entry.identity.Principal)
		}
		seen[string(entry.secret)] = true
		keys.entries = append(keys.entries, entry)
	}
	return keys, nil
}

func parseStaticEntry(raw string) (staticEntry, error) {
	fields := strings.Split(raw, ":")
	if len(fields) != 3 {
		return staticEntry{}, fmt.Errorf("static key %q: want key:principal:role|role", raw)
	}
	secret := strings.TrimSpace(fields[0])
	principal := strings.TrimSpace(fields[1])
	if secret == "" || principal == "" {
		return staticEntry{}, fmt.Errorf("static key %q: key and principal are required", raw)
	}
	var roles []string
	for _, role := range strings.Split(fields[2], "|") {
		if role = strings.TrimSpace(role); role != "" && !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return staticEntry{}, fmt.Errorf("static key %q: no roles", raw)
	}
	slices.Sort(roles)
	return staticEntry{secret: []byte(secret), identity: Identity{Principal: principal, Roles: roles}}, nil
}

// Len is the number of configured keys.
func (k *StaticKeys) Len() int { return len(k.entries) }

func (k *StaticKeys) Validate(_ context.Context, apiKey string) (Identity, bool) {
	candidate := []byte(apiKey)
	for _, entry := range k.entries {
		if subtle.ConstantTimeCompare(entry.secret, candidate) == 1 {
			return entry.identity, true
		}
	}
	return Identity{}, false
}
