package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"planner/internal/auth"
	appLog "planner/internal/log"
	"planner/internal/model"
	"planner/internal/store"
)

const (
	minNameLen     = 2
	minPasswordLen = 6
)

// AuthService registers accounts and signs users in.
type AuthService struct {
	creds  store.CredentialStore
	users  *UserService
	tokens *auth.Tokens
	now    func() time.Time
}

func NewAuthService(creds store.CredentialStore, users *UserService, tokens *auth.Tokens) *AuthService {
	return &AuthService{creds: creds, users: users, tokens: tokens, now: time.Now}
}

// Register creates a credential and the matching user profile.
func (s *AuthService) Register(ctx context.Context, email, password, name, color string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if len([]rune(name)) < minNameLen {
		return model.User{}, invalid("name must have at least %d characters", minNameLen)
	}
	if !validEmail(email) {
		return model.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return model.User{}, ErrWeakPassword
	}
	if strings.TrimSpace(color) == "" {
		return model.User{}, invalid("color is required")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.User{}, err
	}

	id := uuid.NewString()
	err = s.creds.CreateCredential(ctx, store.Credential{
		UserID:       id,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
	if errors.Is(err, store.ErrConflict) {
		return model.User{}, ErrEmailInUse
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create credential: %w", err)
	}

	u, err := s.users.Create(ctx, model.CreateUserRequest{Name: name, Email: email, Color: color}, id)
	if err != nil {
		// Without a profile the credential would lock the email for good.
		if derr := s.creds.DeleteCredential(ctx, email); derr != nil {
			appLog.Error("credential rollback failed", derr, "email", email)
		}
		return model.User{}, err
	}
	appLog.Info("account registered", "id", id)
	return u, nil
}

// SignIn checks the password and returns a session token with the profile.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return "", model.User{}, ErrInvalidEmail
	}

	cred, err := s.creds.GetCredentialByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return "", model.User{}, ErrUserNotFound
	}
	if err != nil {
		return "", model.User{}, fmt.Errorf("lookup credential: %w", err)
	}

	ok, err := auth.VerifyPassword(password, cred.PasswordHash)
	if err != nil {
		return "", model.User{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		appLog.Warn("failed sign-in", "email", email)
		return "", model.User{}, ErrWrongPassword
	}

	u, err := s.users.Get(ctx, cred.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return "", model.User{}, ErrUserNotFound
	}
	if err != nil {
		return "", model.User{}, err
	}

	token, err := s.tokens.Issue(u.ID, email)
	if err != nil {
		return "", model.User{}, err
	}
	return token, u, nil
}

// Authenticate resolves a bearer token to a user id.
func (s *AuthService) Authenticate(token string) (string, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.UserID(), nil
}

// CurrentUser returns the profile of the signed-in user.
func (s *AuthService) CurrentUser(ctx context.Context) (model.User, error) {
	id, ok := auth.CurrentUserID(ctx)
	if !ok {
		return model.User{}, ErrUnauthenticated
	}
	return s.users.Get(ctx, id)
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email && strings.Contains(email, "@")
}
