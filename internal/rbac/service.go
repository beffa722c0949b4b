package rbac

import (
	"errors"
	"sort"
	"strings"
)

// ErrUnknownRole indicates the role is not in the table.
var ErrUnknownRole = errors.New("rbac: unknown role")

// Service resolves permissions from a static role table.
type Service struct {
	roles map[string]Role
}

// NewService constructs a Service over the given roles.
func NewService(roles []Role) *Service {
	idx := make(map[string]Role, len(roles))
	for _, r := range roles {
		idx[strings.ToLower(r.Name)] = r
	}
	return &Service{roles: idx}
}

// HasRole reports whether the role exists.
func (s *Service) HasRole(role string) bool {
	_, ok := s.roles[strings.ToLower(strings.TrimSpace(role))]
	return ok
}

// EffectivePermissions returns the permissions granted to role.
func (s *Service) EffectivePermissions(role string) ([]string, error) {
	r, ok := s.roles[strings.ToLower(strings.TrimSpace(role))]
	if !ok {
		return nil, ErrUnknownRole
	}
	out := make([]string, len(r.Permissions))
	copy(out, r.Permissions)
	return out, nil
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles() []Role {
	roles := make([]Role, 0, len(s.roles))
	for _, r := range s.roles {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles
}
