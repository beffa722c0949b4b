package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/gasdist/stockledger/internal/shared"
)

// dummyHash keeps unknown-user checks as slow as known-user ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("stockledger-dummy"), bcrypt.MinCost)

// Service wraps authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*shared.Principal, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, shared.ErrUnauthorized
	}
	if !user.IsActive {
		return nil, shared.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrUnauthorized
	}
	return &shared.Principal{Username: user.Username, Role: user.Role}, nil
}
