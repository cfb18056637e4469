package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/kurspanel/kurspanel-server/internal/core"
)

// ErrInvalidCredentials is returned when school id and password don't match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CredentialStore is the lookup the identity check needs from the record
// store.
type CredentialStore interface {
	SchoolCredentials(ctx context.Context, schoolID string) (core.School, string, error)
}

// Service is the identity collaborator: it decides which school a session
// acts as. The sync core never sees passwords or tokens, only the selected
// school that comes out of here.
type Service struct {
	store     CredentialStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(store CredentialStore, jwtConfig *JWTConfig) *Service {
	return &Service{store: store, jwtConfig: jwtConfig}
}

// Login validates credentials and returns a session token plus the selected
// school.
func (s *Service) Login(ctx context.Context, schoolID, password string) (string, *core.School, error) {
	school, hash, err := s.store.SchoolCredentials(ctx, schoolID)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := ComparePassword(hash, password); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, school.ID, school.Name)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return token, &school, nil
}

// Validate parses a session token and returns its claims.
func (s *Service) Validate(token string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, token)
}
