package usecase

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
)

var ErrUnauthorized = errors.New("unauthorized")

type AuthService struct {
	keys  ports.APIKeyRepository
	users ports.UserDirectory
}

func NewAuthService(keys ports.APIKeyRepository, users ports.UserDirectory) *AuthService {
	return &AuthService{keys: keys, users: users}
}

// Authenticate resolves an API key to the active user behind it.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Principal{}, ErrUnauthorized
	}

	apiKey, err := s.keys.FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, ErrUnauthorized
		}
		return domain.Principal{}, err
	}
	if !apiKey.Active {
		return domain.Principal{}, ErrUnauthorized
	}

	user, err := s.users.FindUser(ctx, apiKey.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, ErrUnauthorized
		}
		return domain.Principal{}, err
	}
	if !user.Active {
		return domain.Principal{}, ErrUnauthorized
	}
	return domain.Principal{UserID: user.ID, Username: user.Username, KeyName: apiKey.Name}, nil
}

func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}

// NewToken returns a random API key.
func NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return "gmp_" + hex.EncodeToString(buf), nil
}
