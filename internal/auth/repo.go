package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/gasdist/stockledger/internal/shared"
)

// Repository looks up accounts.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
}

// Directory is an in-memory Repository built from configuration.
type Directory struct {
	users map[string]User
}

// ParseDirectory builds a Directory from "user:password:role" entries separated by commas.
// Passwords are hashed with cost at load time and never kept in plaintext.
func ParseDirectory(entries string, cost int) (*Directory, error) {
	dir := &Directory{users: make(map[string]User)}
	for _, raw := range strings.Split(entries, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
			return nil, fmt.Errorf("auth: malformed user entry %q", redact(raw))
		}
		username := strings.ToLower(strings.TrimSpace(parts[0]))
		if _, dup := dir.users[username]; dup {
			return nil, fmt.Errorf("auth: duplicate user %q", username)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(parts[1]), cost)
		if err != nil {
			return nil, fmt.Errorf("auth: hash password for %q: %w", username, err)
		}
		dir.users[username] = User{
			Username:     username,
			PasswordHash: string(hash),
			Role:         strings.ToLower(strings.TrimSpace(parts[2])),
			IsActive:     true,
		}
	}
	if len(dir.users) == 0 {
		return nil, fmt.Errorf("auth: no users configured")
	}
	return dir, nil
}

// FindByUsername returns the account or shared.ErrUnauthorized.
func (d *Directory) FindByUsername(ctx context.Context, username string) (*User, error) {
	user, ok := d.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, shared.ErrUnauthorized
	}
	return &user, nil
}

// Roles lists the distinct roles referenced by the directory.
func (d *Directory) Roles() []string {
	seen := make(map[string]struct{})
	roles := make([]string, 0)
	for _, u := range d.users {
		if _, ok := seen[u.Role]; ok {
			continue
		}
		seen[u.Role] = struct{}{}
		roles = append(roles, u.Role)
	}
	return roles
}

func redact(entry string) string {
	parts := strings.SplitN(entry, ":", 3)
	if len(parts) < 2 {
		return entry
	}
	parts[1] = "***"
	return strings.Join(parts, ":")
}
