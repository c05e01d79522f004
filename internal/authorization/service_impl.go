package authorization

import (
	"context"
	_ "embed"
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/visadesk/internal/audit/domain"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/smallbiznis/visadesk/internal/observability/logger"
	pkgdb "github.com/smallbiznis/visadesk/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed model.conf
var modelText string

var roleCodePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,31}$`)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, userID snowflake.ID, roleCode string, permission string) error {
	if userID <= 0 {
		return ErrInvalidActor
	}
	permission = strings.TrimSpace(permission)
	if permission == "" {
		return ErrInvalidPermission
	}

	subject := userSubject(userID.String())
	if err := s.ensureGrouping(subject, roleSubject(roleCode)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, ObjectOf(permission), permission)
	if err != nil {
		return err
	}
	if !allowed {
		s.emitAudit(ctx, "authorization.denied", "permission", permission, map[string]any{
			"subject": subject,
			"role":    roleCode,
		})
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) BindUserRole(ctx context.Context, userID snowflake.ID, roleCode string) error {
	if userID <= 0 {
		return ErrInvalidActor
	}
	return s.ensureGrouping(userSubject(userID.String()), roleSubject(roleCode))
}

func (s *ServiceImpl) UnbindUser(ctx context.Context, userID snowflake.ID) error {
	_, err := s.enforcer.RemoveFilteredGroupingPolicy(0, userSubject(userID.String()))
	return err
}

// ensureGrouping keeps exactly one role binding per subject.
func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == role {
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule[0], rule[1]); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil || has {
		return err
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func (s *ServiceImpl) RoleExists(ctx context.Context, code string) (bool, error) {
	role, err := s.findRole(ctx, s.db, "code = ?", strings.ToLower(strings.TrimSpace(code)))
	return role != nil, err
}

func (s *ServiceImpl) ListRoles(ctx context.Context) ([]Role, error) {
	roles := []Role{}
	err := s.db.WithContext(ctx).Order("code asc").Find(&roles).Error
	return roles, err
}

func (s *ServiceImpl) GetRole(ctx context.Context, id string) (*Role, error) {
	roleID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	role, err := s.findRole(ctx, s.db, "id = ?", roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (s *ServiceImpl) CreateRole(ctx context.Context, req CreateRoleRequest) (*Role, error) {
	code := strings.ToLower(strings.TrimSpace(req.Code))
	if !roleCodePattern.MatchString(code) {
		return nil, ErrInvalidRoleCode
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidRoleName
	}

	now := s.clock.Now().UTC()
	role := Role{
		ID:          s.genID.Generate(),
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(&role).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, ErrRoleExists
		}
		return nil, err
	}

	s.emitAudit(ctx, "role.create", "role", role.ID.String(), map[string]any{"code": code})
	return &role, nil
}

func (s *ServiceImpl) UpdateRole(ctx context.Context, id string, req UpdateRoleRequest) (*Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrInvalidRoleName
		}
		values["name"] = name
	}
	if req.Description != nil {
		values["description"] = strings.TrimSpace(*req.Description)
	}
	if len(values) == 0 {
		return role, nil
	}
	values["updated_at"] = s.clock.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&Role{}).Where("id = ?", role.ID).Updates(values).Error; err != nil {
		return nil, err
	}

	delete(values, "updated_at")
	s.emitAudit(ctx, "role.update", "role", role.ID.String(), values)
	return s.GetRole(ctx, id)
}

func (s *ServiceImpl) DeleteRole(ctx context.Context, id string) error {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}

	var holders int64
	if err := s.db.WithContext(ctx).Table("users").Where("role_code = ?", role.Code).Count(&holders).Error; err != nil {
		return err
	}
	if holders > 0 {
		return ErrRoleInUse
	}

	if err := s.db.WithContext(ctx).Where("id = ?", role.ID).Delete(&Role{}).Error; err != nil {
		return err
	}
	subject := roleSubject(role.Code)
	if _, err := s.enforcer.RemoveFilteredPolicy(0, subject); err != nil {
		return err
	}
	if _, err := s.enforcer.RemoveFilteredGroupingPolicy(1, subject); err != nil {
		return err
	}

	s.emitAudit(ctx, "role.delete", "role", role.ID.String(), map[string]any{"code": role.Code})
	return nil
}

func (s *ServiceImpl) RolePermissions(ctx context.Context, id string) ([]Permission, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	codes, err := s.grantedCodes(role.Code)
	if err != nil {
		return nil, err
	}
	permissions := []Permission{}
	if len(codes) == 0 {
		return permissions, nil
	}
	err = s.db.WithContext(ctx).Where("code IN ?", codes).Order("code asc").Find(&permissions).Error
	return permissions, err
}

// SetRolePermissions reconciles the role's grants to exactly codes and
// returns what changed.
func (s *ServiceImpl) SetRolePermissions(ctx context.Context, id string, codes []string) (*PermissionDiff, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, ErrSystemRole
	}

	desired := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		desired[code] = struct{}{}
	}
	if len(desired) > 0 {
		wanted := keys(desired)
		var known int64
		if err := s.db.WithContext(ctx).Model(&Permission{}).Where("code IN ?", wanted).Count(&known).Error; err != nil {
			return nil, err
		}
		if int(known) != len(wanted) {
			return nil, ErrInvalidPermission
		}
	}

	current, err := s.grantedCodes(role.Code)
	if err != nil {
		return nil, err
	}
	held := make(map[string]struct{}, len(current))
	for _, code := range current {
		held[code] = struct{}{}
	}

	diff := diffPermissions(held, desired)
	subject := roleSubject(role.Code)
	if len(diff.Removed) > 0 {
		if _, err := s.enforcer.RemovePolicies(policyRules(subject, diff.Removed)); err != nil {
			return nil, err
		}
	}
	if len(diff.Added) > 0 {
		if _, err := s.enforcer.AddPolicies(policyRules(subject, diff.Added)); err != nil {
			return nil, err
		}
	}

	if len(diff.Added) > 0 || len(diff.Removed) > 0 {
		s.emitAudit(ctx, "role.permissions", "role", role.ID.String(), map[string]any{
			"code":    role.Code,
			"added":   diff.Added,
			"removed": diff.Removed,
		})
	}
	return diff, nil
}

func (s *ServiceImpl) ListPermissions(ctx context.Context) ([]Permission, error) {
	permissions := []Permission{}
	err := s.db.WithContext(ctx).Order("object asc, code asc").Find(&permissions).Error
	return permissions, err
}

// EnsureDefaults is idempotent. Default roles only receive their permission
// set when first created so operator edits survive restarts; admin is always
// topped up to the full catalog.
func (s *ServiceImpl) EnsureDefaults(ctx context.Context) error {
	now := s.clock.Now().UTC()
	db := s.db.WithContext(ctx)

	for _, def := range catalog {
		perm := Permission{
			ID:        s.genID.Generate(),
			Code:      def.Code,
			Object:    ObjectOf(def.Code),
			Name:      def.Name,
			CreatedAt: now,
		}
		if err := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).Create(&perm).Error; err != nil {
			return err
		}
	}

	for _, def := range defaultRoles {
		existing, err := s.findRole(ctx, s.db, "code = ?", def.Code)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		role := Role{
			ID:          s.genID.Generate(),
			Code:        def.Code,
			Name:        def.Name,
			Description: def.Description,
			IsSystem:    def.Code == RoleAdmin,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := db.Create(&role).Error; err != nil {
			return err
		}
		if len(def.Permissions) > 0 {
			if _, err := s.enforcer.AddPolicies(policyRules(roleSubject(def.Code), def.Permissions)); err != nil {
				return err
			}
		}
		s.log.Info("default role created", zap.String("code", def.Code))
	}

	all := make([]string, 0, len(catalog))
	for _, def := range catalog {
		all = append(all, def.Code)
	}
	held, err := s.grantedCodes(RoleAdmin)
	if err != nil {
		return err
	}
	heldSet := make(map[string]struct{}, len(held))
	for _, code := range held {
		heldSet[code] = struct{}{}
	}
	missing := make([]string, 0)
	for _, code := range all {
		if _, ok := heldSet[code]; !ok {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		if _, err := s.enforcer.AddPolicies(policyRules(roleSubject(RoleAdmin), missing)); err != nil {
			return err
		}
	}
	return nil
}

func (s *ServiceImpl) grantedCodes(roleCode string) ([]string, error) {
	rules, err := s.enforcer.GetFilteredPolicy(0, roleSubject(roleCode))
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(rules))
	for _, rule := range rules {
		if len(rule) >= 3 {
			codes = append(codes, rule[2])
		}
	}
	sort.Strings(codes)
	return codes, nil
}

func (s *ServiceImpl) findRole(ctx context.Context, db *gorm.DB, query string, args ...any) (*Role, error) {
	var role Role
	err := db.WithContext(ctx).Where(query, args...).First(&role).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (s *ServiceImpl) emitAudit(ctx context.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, targetType, targetID, metadata); err != nil {
		logger.WithContext(ctx, s.log).Warn("operation log failed", zap.String("action", action), zap.Error(err))
	}
}

func diffPermissions(held, desired map[string]struct{}) *PermissionDiff {
	diff := &PermissionDiff{Added: []string{}, Removed: []string{}}
	for code := range desired {
		if _, ok := held[code]; !ok {
			diff.Added = append(diff.Added, code)
		}
	}
	for code := range held {
		if _, ok := desired[code]; !ok {
			diff.Removed = append(diff.Removed, code)
		}
	}
	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	return diff
}

func policyRules(subject string, codes []string) [][]string {
	rules := make([][]string, 0, len(codes))
	for _, code := range codes {
		rules = append(rules, []string{subject, ObjectOf(code), code})
	}
	return rules
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}
