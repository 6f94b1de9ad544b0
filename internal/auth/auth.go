// Package auth manages WaySave accounts: registration, password login and session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

const (
	minPasswordLength = 6

	// maxPasswordLength is the longest input bcrypt accepts, in bytes.
	maxPasswordLength = 72
)

var (
	// ErrUserNotFound is returned by repositories for unknown users.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrEmailInUse is returned when attempting to register a duplicate email.
	ErrEmailInUse = errors.New("auth: email already registered")
	// ErrInvalidCredentials represents a login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidSignup is returned for malformed registration data.
	ErrInvalidSignup = errors.New("auth: invalid signup")
)

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserRepository defines the storage contract used by the service.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
}

// Service contains registration and login logic.
type Service struct {
	repo   UserRepository
	hasher Hasher
	tokens *TokenService
	log    *slog.Logger
}

func NewService(repo UserRepository, hasher Hasher, tokens *TokenService, logger *slog.Logger) *Service {
	return &Service{repo: repo, hasher: hasher, tokens: tokens, log: logger}
}

// Signup registers a new user.
func (s *Service) Signup(ctx context.Context, email, password, fullName string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", ErrInvalidSignup, email)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidSignup, minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return nil, fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidSignup, maxPasswordLength)
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailInUse
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("User signed up", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login checks the password and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, time.Time, *User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", time.Time{}, nil, ErrInvalidCredentials
		}
		return "", time.Time{}, nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return "", time.Time{}, nil, ErrInvalidCredentials
	}

	token, expires, err := s.tokens.GenerateToken(user)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return token, expires, user, nil
}

// Verify resolves a session token into its user. Tokens of deleted users are rejected.
func (s *Service) Verify(ctx context.Context, token string) (*User, *Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	user, err := s.repo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	return user, claims, nil
}
