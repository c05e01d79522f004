package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/smallbiznis/visadesk/internal/auth/domain"
	"github.com/smallbiznis/visadesk/internal/auth/password"
	"github.com/smallbiznis/visadesk/internal/authorization"
	"github.com/smallbiznis/visadesk/internal/observability/obscontext"
	pkgdb "github.com/smallbiznis/visadesk/pkg/db"
	"github.com/smallbiznis/visadesk/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,63}$`)

func (s *Service) ListUsers(ctx context.Context, req domain.ListUserRequest) (pagination.Page[domain.User], error) {
	var empty pagination.Page[domain.User]

	filter := domain.ListFilter{
		Search:   req.Search,
		RoleCode: strings.ToLower(strings.TrimSpace(req.RoleCode)),
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.UserStatus(strings.ToLower(raw))
		if !status.Valid() {
			return empty, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	page := req.Pagination.Normalize()
	filter.Offset = page.Offset()
	filter.Limit = page.Limit

	users, total, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return empty, err
	}
	return pagination.NewPage(page, total, users), nil
}

func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	userID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	user, err := s.newUser(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}
	if err := s.authzSvc.BindUserRole(ctx, user.ID, user.RoleCode); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "user.create", user.ID, map[string]any{
		"username": user.Username,
		"role":     user.RoleCode,
	})
	return user, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, req domain.UpdateUserRequest) (*domain.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		values["name"] = name
	}
	var roleChanged bool
	if req.RoleCode != nil {
		role, err := s.checkRole(ctx, *req.RoleCode)
		if err != nil {
			return nil, err
		}
		if role != user.RoleCode {
			if s.isSelf(ctx, user) {
				return nil, domain.ErrSelfAction
			}
			values["role_code"] = role
			roleChanged = true
		}
	}
	if len(values) == 0 {
		return user, nil
	}
	values["updated_at"] = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, s.db, user.ID, values); err != nil {
		return nil, err
	}
	if roleChanged {
		if err := s.authzSvc.BindUserRole(ctx, user.ID, values["role_code"].(string)); err != nil {
			return nil, err
		}
	}

	delete(values, "updated_at")
	s.emitAudit(ctx, "user.update", user.ID, values)
	return s.GetUser(ctx, id)
}

func (s *Service) SetUserStatus(ctx context.Context, id string, status string) (*domain.User, error) {
	next := domain.UserStatus(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Status == next {
		return user, nil
	}
	if s.isSelf(ctx, user) {
		return nil, domain.ErrSelfAction
	}
	if err := s.repo.Update(ctx, s.db, user.ID, map[string]any{
		"status":     next,
		"updated_at": s.clock.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "user.status", user.ID, map[string]any{"status": string(next)})
	return s.GetUser(ctx, id)
}

func (s *Service) ResetPassword(ctx context.Context, id string, newPassword string) error {
	if err := checkPassword(newPassword); err != nil {
		return err
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	hashed, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, s.db, user.ID, map[string]any{
		"password_hash": hashed,
		"updated_at":    s.clock.Now().UTC(),
	}); err != nil {
		return err
	}

	s.emitAudit(ctx, "user.password.reset", user.ID, nil)
	return nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if s.isSelf(ctx, user) {
		return domain.ErrSelfAction
	}
	if err := s.repo.Delete(ctx, s.db, user.ID); err != nil {
		return err
	}
	if err := s.authzSvc.UnbindUser(ctx, user.ID); err != nil {
		s.log.Warn("unbind deleted user", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	s.emitAudit(ctx, "user.delete", user.ID, map[string]any{"username": user.Username})
	return nil
}

func (s *Service) EnsureAdmin(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	req.RoleCode = authorization.RoleAdmin
	username := normalizeUsername(req.Username)

	existing, err := s.repo.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return s.CreateUser(ctx, req)
	}

	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Update(ctx, tx, existing.ID, map[string]any{
			"password_hash": hashed,
			"role_code":     authorization.RoleAdmin,
			"status":        domain.UserStatusEnabled,
			"updated_at":    s.clock.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	if err := s.authzSvc.BindUserRole(ctx, existing.ID, authorization.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, s.db, existing.ID)
}

func (s *Service) newUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	username := normalizeUsername(req.Username)
	if !usernamePattern.MatchString(username) {
		return nil, domain.ErrInvalidUsername
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = username
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	role, err := s.checkRole(ctx, req.RoleCode)
	if err != nil {
		return nil, err
	}
	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	return &domain.User{
		ID:           s.genID.Generate(),
		Username:     username,
		PasswordHash: hashed,
		Name:         name,
		RoleCode:     role,
		Status:       domain.UserStatusEnabled,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Service) checkRole(ctx context.Context, raw string) (string, error) {
	role := strings.ToLower(strings.TrimSpace(raw))
	if role == "" {
		return "", domain.ErrInvalidRole
	}
	ok, err := s.authzSvc.RoleExists(ctx, role)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidRole
	}
	return role, nil
}

func (s *Service) isSelf(ctx context.Context, user *domain.User) bool {
	return obscontext.ActorIDFromContext(ctx) == user.ID.String()
}
