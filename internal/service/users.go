package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	appLog "planner/internal/log"
	"planner/internal/model"
	"planner/internal/store"
)

// defaultColors is the Material palette offered when picking a user color.
var defaultColors = []string{
	"#f44336", "#e91e63", "#9c27b0", "#673ab7",
	"#3f51b5", "#2196f3", "#03a9f4", "#00bcd4",
	"#009688", "#4caf50", "#8bc34a", "#cddc39",
	"#ffeb3b", "#ffc107", "#ff9800", "#ff5722",
}

// DefaultColors returns a copy of the palette.
func DefaultColors() []string {
	return slices.Clone(defaultColors)
}

// SuggestColor returns the first palette color not in existing. When all
// are taken it cycles through the palette by the number already used.
func SuggestColor(existing []string) string {
	for _, c := range defaultColors {
		if !slices.ContainsFunc(existing, func(e string) bool { return strings.EqualFold(e, c) }) {
			return c
		}
	}
	return defaultColors[len(existing)%len(defaultColors)]
}

type UserService struct {
	users store.UserStore
	now   func() time.Time
}

func NewUserService(users store.UserStore) *UserService {
	return &UserService{users: users, now: time.Now}
}

// Create stores a profile. An empty id gets a generated one; registration
// passes the credential's id so both records share it.
func (s *UserService) Create(ctx context.Context, req model.CreateUserRequest, id string) (model.User, error) {
	u := model.User{
		ID:        id,
		Name:      strings.TrimSpace(req.Name),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Color:     strings.TrimSpace(req.Color),
		Avatar:    req.Avatar,
		CreatedAt: s.now(),
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := validateUser(u); err != nil {
		return model.User{}, err
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	appLog.Info("user created", "id", u.ID)
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (model.User, error) {
	return s.users.GetUser(ctx, id)
}

func (s *UserService) Update(ctx context.Context, id string, req model.UpdateUserRequest) (model.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if req.Name != nil {
		u.Name = strings.TrimSpace(*req.Name)
	}
	if req.Color != nil {
		u.Color = strings.TrimSpace(*req.Color)
	}
	if req.Avatar != nil {
		u.Avatar = *req.Avatar
	}
	if err := validateUser(u); err != nil {
		return model.User{}, err
	}
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return model.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	appLog.Info("user deleted", "id", id)
	return nil
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	return s.users.ListUsers(ctx)
}

// NextColor suggests a color not yet used by any stored user.
func (s *UserService) NextColor(ctx context.Context) (string, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	used := make([]string, 0, len(users))
	for _, u := range users {
		used = append(used, u.Color)
	}
	return SuggestColor(used), nil
}

func validateUser(u model.User) error {
	if u.Name == "" {
		return invalid("name is required")
	}
	if u.Color == "" {
		return invalid("color is required")
	}
	return nil
}
