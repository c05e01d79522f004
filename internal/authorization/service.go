package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Authorize checks that the user, holding roleCode, has the permission.
	Authorize(ctx context.Context, userID snowflake.ID, roleCode string, permission string) error
	BindUserRole(ctx context.Context, userID snowflake.ID, roleCode string) error
	UnbindUser(ctx context.Context, userID snowflake.ID) error
	RoleExists(ctx context.Context, code string) (bool, error)

	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id string) (*Role, error)
	CreateRole(ctx context.Context, req CreateRoleRequest) (*Role, error)
	UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*Role, error)
	DeleteRole(ctx context.Context, id string) error
	RolePermissions(ctx context.Context, id string) ([]Permission, error)
	SetRolePermissions(ctx context.Context, id string, codes []string) (*PermissionDiff, error)
	ListPermissions(ctx context.Context) ([]Permission, error)

	// EnsureDefaults creates the permission catalog and default roles.
	EnsureDefaults(ctx context.Context) error
}

type CreateRoleRequest struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type UpdateRoleRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

var (
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidActor      = errors.New("invalid_actor")
	ErrInvalidPermission = errors.New("invalid_permission")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidRoleCode   = errors.New("invalid_role_code")
	ErrInvalidRoleName   = errors.New("invalid_role_name")
	ErrRoleNotFound      = errors.New("role_not_found")
	ErrRoleExists        = errors.New("role_already_exists")
	ErrRoleInUse         = errors.New("role_in_use")
	ErrSystemRole        = errors.New("system_role_immutable")
)
