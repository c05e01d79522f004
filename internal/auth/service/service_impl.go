package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/visadesk/internal/audit/domain"
	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
	"github.com/smallbiznis/visadesk/internal/auth/password"
	"github.com/smallbiznis/visadesk/internal/auth/token"
	"github.com/smallbiznis/visadesk/internal/authorization"
	"github.com/smallbiznis/visadesk/internal/clock"
	"github.com/smallbiznis/visadesk/internal/observability/logger"
	"github.com/smallbiznis/visadesk/internal/observability/metrics"
	"github.com/smallbiznis/visadesk/internal/observability/obscontext"
	"github.com/smallbiznis/visadesk/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     authdomain.Repository
	Tokens   *token.Issuer
	AuthzSvc authorization.Service
	Limiter  *ratelimit.LoginLimiter `optional:"true"`
	AuditSvc auditdomain.Service     `optional:"true"`
	Metrics  *metrics.Metrics        `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     authdomain.Repository
	tokens   *token.Issuer
	authzSvc authorization.Service
	limiter  *ratelimit.LoginLimiter
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) authdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("auth.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		tokens:   p.Tokens,
		authzSvc: p.AuthzSvc,
		limiter:  p.Limiter,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResult, error) {
	username := normalizeUsername(req.Username)
	if username == "" || req.Password == "" {
		return nil, authdomain.ErrInvalidCredentials
	}

	if err := s.limiter.Allow(ctx, username, req.IPAddress); err != nil {
		s.metrics.RecordLoginAttempt(ctx, "limited")
		return nil, err
	}

	user, err := s.repo.FindByUsername(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if user == nil || !password.Verify(req.Password, user.PasswordHash) {
		s.metrics.RecordLoginAttempt(ctx, "failure")
		return nil, authdomain.ErrInvalidCredentials
	}
	if user.Status != authdomain.UserStatusEnabled {
		s.metrics.RecordLoginAttempt(ctx, "failure")
		return nil, authdomain.ErrUserDisabled
	}

	now := s.clock.Now().UTC()
	values := map[string]any{"last_login_at": now}
	if password.NeedsRehash(user.PasswordHash) {
		if rehashed, err := password.Hash(req.Password); err == nil {
			values["password_hash"] = rehashed
		}
	}
	if err := s.repo.Update(ctx, s.db, user.ID, values); err != nil {
		return nil, err
	}
	user.LastLoginAt = &now

	raw, expiresAt, err := s.tokens.Issue(user.ID, user.RoleCode)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordLoginAttempt(ctx, "success")
	s.emitAudit(obscontext.WithActorID(ctx, user.ID.String()), "auth.login", user.ID, nil)
	return &authdomain.LoginResult{Token: raw, ExpiresAt: expiresAt, User: user}, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*authdomain.User, error) {
	claims, err := s.tokens.Parse(rawToken)
	if err != nil {
		return nil, authdomain.ErrUnauthorized
	}
	user, err := s.repo.FindByID(ctx, s.db, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrUnauthorized
	}
	if user.Status != authdomain.UserStatusEnabled {
		return nil, authdomain.ErrUserDisabled
	}
	return user, nil
}

func (s *Service) CurrentUser(ctx context.Context) (*authdomain.User, error) {
	id, err := snowflake.ParseString(obscontext.ActorIDFromContext(ctx))
	if err != nil || id <= 0 {
		return nil, authdomain.ErrUnauthorized
	}
	user, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrUnauthorized
	}
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, req authdomain.ChangePasswordRequest) error {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if !password.Verify(req.OldPassword, user.PasswordHash) {
		return authdomain.ErrWrongPassword
	}
	if err := checkPassword(req.NewPassword); err != nil {
		return err
	}
	hashed, err := password.Hash(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.Update(ctx, s.db, user.ID, map[string]any{
		"password_hash": hashed,
		"updated_at":    s.clock.Now().UTC(),
	}); err != nil {
		return err
	}

	s.emitAudit(ctx, "auth.password.change", user.ID, nil)
	return nil
}

func (s *Service) UpdateProfile(ctx context.Context, req authdomain.UpdateProfileRequest) (*authdomain.User, error) {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if req.Name == nil {
		return user, nil
	}
	name := strings.TrimSpace(*req.Name)
	if name == "" {
		return nil, authdomain.ErrInvalidName
	}
	if err := s.repo.Update(ctx, s.db, user.ID, map[string]any{
		"name":       name,
		"updated_at": s.clock.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	s.emitAudit(ctx, "auth.profile.update", user.ID, map[string]any{"name": name})
	return s.GetUser(ctx, user.ID.String())
}

func (s *Service) emitAudit(ctx context.Context, action string, userID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, action, "user", userID.String(), metadata); err != nil {
		logger.WithContext(ctx, s.log).Warn("operation log failed", zap.String("action", action), zap.Error(err))
	}
}

func normalizeUsername(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func checkPassword(value string) error {
	if len(value) < password.MinLength {
		return authdomain.ErrWeakPassword
	}
	return nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, authdomain.ErrInvalidID
	}
	return id, nil
}

