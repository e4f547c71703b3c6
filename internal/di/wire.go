//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"gpconnect/internal/common"
	"gpconnect/internal/community"
	"gpconnect/internal/config"
	"gpconnect/internal/dbmysql"
	"gpconnect/internal/message"
	"gpconnect/internal/user"
	"gpconnect/internal/ws"
)

// InitializeApplication builds the whole object graph. Wire generates the
// real body; this is just the declaration.
func InitializeApplication() (*Application, func(), error) {
	wire.Build(
		config.Load,
		dbmysql.NewMySQL,
		provideMongo,
		user.NewUserRepository,
		user.NewService,
		user.NewHandler,
		wire.Bind(new(common.IdentityDirectory), new(*user.Service)),
		wire.Bind(new(common.TokenValidator), new(*user.Service)),
		ws.NewHub,
		wire.Bind(new(common.Broadcaster), new(*ws.Hub)),
		provideWSHandler,
		community.NewRepository,
		community.NewCommunityService,
		community.NewHandler,
		message.NewRepository,
		message.NewMessageService,
		message.NewHandler,
		common.NewAuthMiddleware,
		wire.Struct(new(Application), "*"),
	)
	return &Application{}, nil, nil
}
