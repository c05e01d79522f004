package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/visadesk/pkg/db/pagination"
)

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	// Authenticate resolves a bearer token to an enabled user.
	Authenticate(ctx context.Context, rawToken string) (*User, error)
	CurrentUser(ctx context.Context) (*User, error)
	ChangePassword(ctx context.Context, req ChangePasswordRequest) error
	UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error)

	ListUsers(ctx context.Context, req ListUserRequest) (pagination.Page[User], error)
	GetUser(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*User, error)
	SetUserStatus(ctx context.Context, id string, status string) (*User, error)
	ResetPassword(ctx context.Context, id string, newPassword string) error
	DeleteUser(ctx context.Context, id string) error

	// EnsureAdmin creates the user or resets its password and role to admin.
	EnsureAdmin(ctx context.Context, req CreateUserRequest) (*User, error)
}

type LoginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// UpdateProfileRequest carries the fields a user may change on their own account.
type UpdateProfileRequest struct {
	Name *string `json:"name"`
}

type ListUserRequest struct {
	pagination.Pagination
	Search   string `form:"search"`
	RoleCode string `form:"role"`
	Status   string `form:"status"`
}

type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	RoleCode string `json:"role"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	RoleCode *string `json:"role"`
}

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrUserDisabled       = errors.New("user_disabled")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrUserExists         = errors.New("user_already_exists")
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidUsername    = errors.New("invalid_username")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrWeakPassword       = errors.New("weak_password")
	ErrWrongPassword      = errors.New("wrong_old_password")
	ErrSelfAction         = errors.New("cannot_modify_self")
)
