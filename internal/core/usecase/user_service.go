package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
)

// UserService registers signers. User creation is itself audited.
type UserService struct {
	repo ports.UserRepository
	now  func() time.Time
}

func NewUserService(repo ports.UserRepository) *UserService {
	return &UserService{repo: repo, now: time.Now}
}

// Create registers a user with one API key. When token is empty a random
// one is generated; the plain token is returned once and never stored.
func (s *UserService) Create(ctx context.Context, username, fullName, token string, actor domain.ActorID, origin domain.Origin) (domain.Signer, string, error) {
	username = strings.TrimSpace(username)
	fullName = strings.TrimSpace(fullName)
	if username == "" {
		return domain.Signer{}, "", domain.NewValidationError("username", "required")
	}
	if fullName == "" {
		return domain.Signer{}, "", domain.NewValidationError("full_name", "required")
	}
	if token == "" {
		var err error
		if token, err = NewToken(); err != nil {
			return domain.Signer{}, "", err
		}
	}

	origin = origin.Normalize()
	user, err := s.repo.CreateWithKey(ctx,
		domain.Signer{Username: username, FullName: fullName},
		domain.APIKey{TokenHash: HashToken(token), Name: "default"},
		domain.AuditEvent{
			ActorID:     actor,
			Action:      "USER_CREATE",
			Table:       "users",
			Description: fmt.Sprintf("user %s (%s) created", username, fullName),
			SourceIP:    origin.SourceIP,
			Severity:    domain.SeverityAudit,
			Device:      origin.Device,
			SessionID:   origin.SessionID,
			CreatedAt:   s.now(),
		})
	if err != nil {
		return domain.Signer{}, "", err
	}
	return user, token, nil
}

// EnsureBootstrap creates the bootstrap user unless username already exists.
func (s *UserService) EnsureBootstrap(ctx context.Context, username, fullName, token string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	_, err := s.repo.FindByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}
	if _, _, err := s.Create(ctx, username, fullName, token, domain.SystemActor, domain.Origin{}); err != nil {
		return false, fmt.Errorf("bootstrap user: %w", err)
	}
	return true, nil
}
