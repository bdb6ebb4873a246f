package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// PasswordHasher derives and verifies credential hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, encoded string) (bool, error)
}

// AccountService handles registration and credential checks.
type AccountService struct {
	users  UserRepository
	hasher PasswordHasher
}

// NewAccountService constructs an AccountService.
func NewAccountService(users UserRepository, hasher PasswordHasher) *AccountService {
	return &AccountService{users: users, hasher: hasher}
}

// Register creates a user with a unique handle.
func (a *AccountService) Register(ctx context.Context, handle, password string) (*User, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" || utf8.RuneCountInString(handle) > 64 {
		return nil, fmt.Errorf("%w: handle must be 1-64 characters", ErrInvalidCredentials)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidCredentials)
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:             uuid.NewString(),
		Handle:         handle,
		CredentialHash: hash,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate returns the user whose credentials match.
func (a *AccountService) Authenticate(ctx context.Context, handle, password string) (*User, error) {
	user, err := a.users.FindUserByHandle(ctx, strings.TrimSpace(handle))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	ok, err := a.hasher.Compare(password, user.CredentialHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
