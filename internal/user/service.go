// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelamos/digitalstore/internal/auth"
	"github.com/angelamos/digitalstore/internal/core"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(
	ctx context.Context,
	id string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

// GetByLogin resolves a user by username or email address.
func (s *Service) GetByLogin(
	ctx context.Context,
	login string,
) (*auth.UserInfo, error) {
	user, err := s.repo.GetByUsernameOrEmail(ctx, normalizeLogin(login))
	if err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	username, email, passwordHash, firstName, lastName string,
) (*auth.UserInfo, error) {
	user := &User{
		ID:           uuid.New().String(),
		Username:     strings.ToLower(strings.TrimSpace(username)),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         RoleUser,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(
	ctx context.Context,
	userID string,
) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(
	ctx context.Context,
	userID, passwordHash string,
) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) StampLastLogin(ctx context.Context, userID string) error {
	return s.repo.StampLastLogin(ctx, userID)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateProfile(
	ctx context.Context,
	id string,
	req UpdateProfileRequest,
) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Email != nil {
		newEmail := strings.ToLower(strings.TrimSpace(*req.Email))
		if newEmail != user.Email {
			user.Email = newEmail
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *Service) UpdateUserRole(
	ctx context.Context,
	id, role string,
) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, fmt.Errorf(
			"update role: invalid role %q: %w",
			role,
			core.ErrInvalidInput,
		)
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Role = role

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// DeactivateUser blocks the account from logging in and invalidates
// outstanding access tokens by bumping the token version.
func (s *Service) DeactivateUser(ctx context.Context, id string) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	return s.repo.IncrementTokenVersion(ctx, id)
}

func (s *Service) ReactivateUser(ctx context.Context, id string) error {
	return s.repo.SetActive(ctx, id, true)
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("get me: %w", core.ErrUnauthorized)
	}

	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateProfileRequest,
) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("update me: %w", core.ErrUnauthorized)
	}

	return s.UpdateProfile(ctx, userID, req)
}

func (s *Service) UsernameExists(
	ctx context.Context,
	username string,
) (bool, error) {
	return s.repo.ExistsByUsername(ctx, strings.ToLower(username))
}

func (s *Service) EmailExists(
	ctx context.Context,
	email string,
) (bool, error) {
	return s.repo.ExistsByEmail(ctx, strings.ToLower(email))
}

func (s *Service) CanDeactivateUser(
	ctx context.Context,
	requesterID, targetID string,
) error {
	if requesterID == targetID {
		return fmt.Errorf(
			"cannot deactivate your own account: %w",
			core.ErrForbidden,
		)
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.IsAdmin() {
		return fmt.Errorf("cannot deactivate admin users: %w", core.ErrForbidden)
	}

	return nil
}

func normalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		IsActive:     u.IsActive,
		TokenVersion: u.TokenVersion,
	}
}

var _ auth.UserProvider = (*Service)(nil)
