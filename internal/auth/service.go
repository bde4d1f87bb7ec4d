package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/estate-marketplace/internal/models"
	"github.com/ayush/estate-marketplace/internal/store"
)

var (
	// ErrInvalidCredentials is returned for an unknown email and for a wrong
	// password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingFields      = errors.New("username, email and password are required")
	ErrUserExists         = errors.New("username or email already in use")
	// ErrPasswordTooLong is returned for passwords bcrypt cannot hash.
	ErrPasswordTooLong = fmt.Errorf("password must be at most %d bytes", MaxPasswordBytes)
)

// MaxPasswordBytes is bcrypt's input limit. It counts bytes, not characters.
const MaxPasswordBytes = 72

const federatedUsernameAttempts = 3

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, email, hashedPw, avatar string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Service implements signup and the login flows.
type Service struct {
	users         UserStore
	tokens        *TokenManager
	defaultAvatar string
}

func NewService(users UserStore, tokens *TokenManager, defaultAvatar string) *Service {
	return &Service{users: users, tokens: tokens, defaultAvatar: defaultAvatar}
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	hashed, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.CreateUser(ctx, username, email, hashed, s.defaultAvatar)
	if errors.Is(err, store.ErrConflict) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// Login checks email and password and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// Burn a comparison so unknown emails cost the same as bad passwords.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// LoginFederated signs in the user owning email, provisioning one with a
// random password on first sight. The email must already be verified by the
// identity provider.
func (s *Service) LoginFederated(ctx context.Context, email, displayName, avatarURL string) (*models.User, string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		user, err = s.provision(ctx, email, displayName, avatarURL)
		if err != nil {
			return nil, "", err
		}
	case err != nil:
		return nil, "", fmt.Errorf("federated login: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *Service) provision(ctx context.Context, email, displayName, avatarURL string) (*models.User, error) {
	hashed, err := HashPassword(randomToken() + randomToken())
	if err != nil {
		return nil, err
	}
	if avatarURL == "" {
		avatarURL = s.defaultAvatar
	}

	base := usernameBase(displayName)
	for i := 0; i < federatedUsernameAttempts; i++ {
		user, err := s.users.CreateUser(ctx, base+randomToken()[:8], email, hashed, avatarURL)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("provision federated user: %w", err)
		}
		// The email may have been registered concurrently.
		if existing, lookupErr := s.users.GetUserByEmail(ctx, email); lookupErr == nil {
			return existing, nil
		}
	}
	return nil, ErrUserExists
}

// usernameBase lowercases name and strips whitespace.
func usernameBase(name string) string {
	base := strings.ToLower(strings.Join(strings.Fields(name), ""))
	if base == "" {
		base = "user"
	}
	if r := []rune(base); len(r) > 40 {
		base = string(r[:40])
	}
	return base
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("estate-dummy-password"), bcrypt.DefaultCost)
