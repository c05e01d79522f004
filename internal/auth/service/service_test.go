package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
	"github.com/smallbiznis/visadesk/internal/auth/password"
	"github.com/smallbiznis/visadesk/internal/auth/repository"
	"github.com/smallbiznis/visadesk/internal/auth/token"
	"github.com/smallbiznis/visadesk/internal/authorization"
	"github.com/smallbiznis/visadesk/internal/config"
	"github.com/smallbiznis/visadesk/internal/observability/obscontext"
	"github.com/smallbiznis/visadesk/internal/ratelimit"
	"github.com/smallbiznis/visadesk/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	env   *testutil.Env
	svc   authdomain.Service
	authz authorization.Service
	admin *authdomain.User
}

func newFixture(t *testing.T, limiter *ratelimit.LoginLimiter) *fixture {
	t.Helper()
	env := testutil.NewEnv(t)

	enforcer, err := authorization.NewEnforcer(env.DB)
	require.NoError(t, err)
	authz := authorization.NewService(authorization.Params{
		DB:       env.DB,
		Log:      zap.NewNop(),
		GenID:    env.Node,
		Clock:    env.Clock,
		Enforcer: enforcer,
	})
	require.NoError(t, authz.EnsureDefaults(context.Background()))

	issuer, err := token.NewIssuer(config.Config{
		AuthJWTSecret:   "test-secret",
		AuthJWTIssuer:   "visadesk",
		AuthJWTAudience: "visadesk-admin",
		AuthTokenTTL:    time.Hour,
	}, env.Clock)
	require.NoError(t, err)

	svc := New(Params{
		DB:       env.DB,
		Log:      zap.NewNop(),
		GenID:    env.Node,
		Clock:    env.Clock,
		Repo:     repository.Provide(),
		Tokens:   issuer,
		AuthzSvc: authz,
		Limiter:  limiter,
	})
	admin, err := svc.EnsureAdmin(context.Background(), authdomain.CreateUserRequest{
		Username: "Admin",
		Password: "admin-pass",
		Name:     "Administrator",
	})
	require.NoError(t, err)
	return &fixture{env: env, svc: svc, authz: authz, admin: admin}
}

func (f *fixture) as(user *authdomain.User) context.Context {
	return obscontext.WithActorID(context.Background(), user.ID.String())
}

func TestLoginIssuesTokenThatAuthenticates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Login(ctx, authdomain.LoginRequest{Username: " admin ", Password: "admin-pass"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, testutil.Now.Add(time.Hour), res.ExpiresAt)
	assert.Equal(t, authorization.RoleAdmin, res.User.RoleCode)
	require.NotNil(t, res.User.LastLoginAt)

	user, err := f.svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, user.ID)

	_, err = f.svc.Authenticate(ctx, res.Token+"x")
	assert.ErrorIs(t, err, authdomain.ErrUnauthorized)
}

func TestLoginFailures(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, authdomain.LoginRequest{Username: "admin", Password: "wrong-pass"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Username: "ghost", Password: "admin-pass"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, authdomain.LoginRequest{})
	assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)

	clerk, err := f.svc.CreateUser(f.as(f.admin), authdomain.CreateUserRequest{
		Username: "clerk",
		Password: "clerk-pass",
		RoleCode: authorization.RoleOperator,
	})
	require.NoError(t, err)
	res, err := f.svc.Login(ctx, authdomain.LoginRequest{Username: "clerk", Password: "clerk-pass"})
	require.NoError(t, err)

	_, err = f.svc.SetUserStatus(f.as(f.admin), clerk.ID.String(), "disabled")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Username: "clerk", Password: "clerk-pass"})
	assert.ErrorIs(t, err, authdomain.ErrUserDisabled)
	_, err = f.svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, authdomain.ErrUserDisabled)
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	f := newFixture(t, nil)
	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, f.env.DB.Model(&authdomain.User{}).Where("id = ?", f.admin.ID).
		Update("password_hash", string(legacy)).Error)

	_, err = f.svc.Login(context.Background(), authdomain.LoginRequest{Username: "admin", Password: "legacy-pass"})
	require.NoError(t, err)

	var stored authdomain.User
	require.NoError(t, f.env.DB.First(&stored, "id = ?", f.admin.ID).Error)
	assert.False(t, password.NeedsRehash(stored.PasswordHash))
	assert.True(t, password.Verify("legacy-pass", stored.PasswordHash))
}

func TestLoginRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{RateLimit: config.RateLimitConfig{
		Enabled:    true,
		RedisAddr:  mr.Addr(),
		LoginRate:  0.01,
		LoginBurst: 2,
	}}
	limiter, err := ratelimit.NewLoginLimiter(nil, cfg, zap.NewNop())
	require.NoError(t, err)
	f := newFixture(t, limiter)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Login(ctx, authdomain.LoginRequest{Username: "admin", Password: "bad-pass", IPAddress: "10.0.0.1"})
		assert.ErrorIs(t, err, authdomain.ErrInvalidCredentials)
	}
	_, err = f.svc.Login(ctx, authdomain.LoginRequest{Username: "admin", Password: "admin-pass", IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
}

func TestUserAdministration(t *testing.T) {
	f := newFixture(t, nil)
	ctx := f.as(f.admin)

	_, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Username: "x", Password: "long-enough", RoleCode: "operator"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidUsername)
	_, err = f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Username: "bob", Password: "short", RoleCode: "operator"})
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)
	_, err = f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Username: "bob", Password: "long-enough", RoleCode: "pilot"})
	assert.ErrorIs(t, err, authdomain.ErrInvalidRole)

	bob, err := f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Username: "Bob", Password: "long-enough", RoleCode: "finance"})
	require.NoError(t, err)
	assert.Equal(t, "bob", bob.Username)
	assert.Equal(t, "bob", bob.Name)
	assert.NoError(t, f.authz.Authorize(ctx, bob.ID, bob.RoleCode, authorization.PermPaymentReview))

	_, err = f.svc.CreateUser(ctx, authdomain.CreateUserRequest{Username: "bob", Password: "long-enough", RoleCode: "finance"})
	assert.ErrorIs(t, err, authdomain.ErrUserExists)

	role := "operator"
	updated, err := f.svc.UpdateUser(ctx, bob.ID.String(), authdomain.UpdateUserRequest{RoleCode: &role})
	require.NoError(t, err)
	assert.Equal(t, "operator", updated.RoleCode)

	page, err := f.svc.ListUsers(ctx, authdomain.ListUserRequest{RoleCode: "operator"})
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)
	assert.Equal(t, bob.ID, page.Data[0].ID)

	require.NoError(t, f.svc.ResetPassword(ctx, bob.ID.String(), "brand-new-pass"))
	_, err = f.svc.Login(context.Background(), authdomain.LoginRequest{Username: "bob", Password: "brand-new-pass"})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteUser(ctx, bob.ID.String()))
	_, err = f.svc.GetUser(ctx, bob.ID.String())
	assert.ErrorIs(t, err, authdomain.ErrUserNotFound)
}

func TestSelfProtection(t *testing.T) {
	f := newFixture(t, nil)
	ctx := f.as(f.admin)

	_, err := f.svc.SetUserStatus(ctx, f.admin.ID.String(), "disabled")
	assert.ErrorIs(t, err, authdomain.ErrSelfAction)
	assert.ErrorIs(t, f.svc.DeleteUser(ctx, f.admin.ID.String()), authdomain.ErrSelfAction)

	role := "operator"
	_, err = f.svc.UpdateUser(ctx, f.admin.ID.String(), authdomain.UpdateUserRequest{RoleCode: &role})
	assert.ErrorIs(t, err, authdomain.ErrSelfAction)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, nil)
	ctx := f.as(f.admin)

	err := f.svc.ChangePassword(ctx, authdomain.ChangePasswordRequest{OldPassword: "nope", NewPassword: "another-pass"})
	assert.ErrorIs(t, err, authdomain.ErrWrongPassword)
	err = f.svc.ChangePassword(ctx, authdomain.ChangePasswordRequest{OldPassword: "admin-pass", NewPassword: "tiny"})
	assert.ErrorIs(t, err, authdomain.ErrWeakPassword)
	require.NoError(t, f.svc.ChangePassword(ctx, authdomain.ChangePasswordRequest{OldPassword: "admin-pass", NewPassword: "another-pass"}))

	_, err = f.svc.Login(context.Background(), authdomain.LoginRequest{Username: "admin", Password: "another-pass"})
	require.NoError(t, err)

	_, err = f.svc.CurrentUser(context.Background())
	assert.ErrorIs(t, err, authdomain.ErrUnauthorized)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t, nil)
	ctx := f.as(f.admin)

	blank := "   "
	_, err := f.svc.UpdateProfile(ctx, authdomain.UpdateProfileRequest{Name: &blank})
	assert.ErrorIs(t, err, authdomain.ErrInvalidName)

	name := " Office Lead "
	updated, err := f.svc.UpdateProfile(ctx, authdomain.UpdateProfileRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Office Lead", updated.Name)
	assert.Equal(t, f.admin.RoleCode, updated.RoleCode)

	_, err = f.svc.UpdateProfile(context.Background(), authdomain.UpdateProfileRequest{Name: &name})
	assert.ErrorIs(t, err, authdomain.ErrUnauthorized)
}

func TestEnsureAdminResetsExistingUser(t *testing.T) {
	f := newFixture(t, nil)

	again, err := f.svc.EnsureAdmin(context.Background(), authdomain.CreateUserRequest{Username: "admin", Password: "rotated-pass"})
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, again.ID)

	_, err = f.svc.Login(context.Background(), authdomain.LoginRequest{Username: "admin", Password: "rotated-pass"})
	require.NoError(t, err)
}
