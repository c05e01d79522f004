package auth

import (
	"github.com/smallbiznis/visadesk/internal/auth/repository"
	"github.com/smallbiznis/visadesk/internal/auth/service"
	"github.com/smallbiznis/visadesk/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(token.NewIssuer),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
