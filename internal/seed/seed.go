package seed

import (
	"context"
	"errors"

	authdomain "github.com/smallbiznis/visadesk/internal/auth/domain"
	"github.com/smallbiznis/visadesk/internal/authorization"
	"github.com/smallbiznis/visadesk/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Cfg      config.Config
	Log      *zap.Logger
	AuthzSvc authorization.Service
	Users    authdomain.Service
}

var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, p Params) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return Run(ctx, p)
			},
		})
	}),
)

// Run creates the permission catalog and default roles, then the bootstrap
// administrator when the user table is still empty.
func Run(ctx context.Context, p Params) error {
	if p.DB == nil {
		return errors.New("seed database handle is required")
	}
	if err := p.AuthzSvc.EnsureDefaults(ctx); err != nil {
		return err
	}

	var users int64
	if err := p.DB.WithContext(ctx).Model(&authdomain.User{}).Count(&users).Error; err != nil {
		return err
	}
	if users > 0 {
		return nil
	}

	boot := p.Cfg.Bootstrap
	if boot.AdminUsername == "" || boot.AdminPassword == "" {
		p.Log.Warn("no users exist and BOOTSTRAP_ADMIN_PASSWORD is empty; run create-admin to add one")
		return nil
	}

	admin, err := p.Users.EnsureAdmin(ctx, authdomain.CreateUserRequest{
		Username: boot.AdminUsername,
		Password: boot.AdminPassword,
		Name:     boot.AdminName,
	})
	if err != nil {
		return err
	}
	p.Log.Info("bootstrap admin created", zap.String("username", admin.Username))
	return nil
}
