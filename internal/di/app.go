package di

import (
	"context"
	"time"

	"gorm.io/gorm"

	"gpconnect/internal/common"
	"gpconnect/internal/community"
	"gpconnect/internal/config"
	"gpconnect/internal/dbmongo"
	"gpconnect/internal/message"
	"gpconnect/internal/user"
	"gpconnect/internal/ws"
)

// Application bundles everything main needs to run the server.
type Application struct {
	Config           *config.Config
	DB               *gorm.DB
	Mongo            *dbmongo.MongoClient
	Hub              *ws.Hub
	Auth             *common.AuthMiddleware
	UserHandler      *user.Handler
	CommunityHandler *community.Handler
	MessageHandler   *message.Handler
	WSHandler        *ws.Handler
}

func provideWSHandler(cfg *config.Config, hub *ws.Hub, validator common.TokenValidator) *ws.Handler {
	return ws.NewHandler(hub, validator, cfg.Server.CORSOrigin)
}

func provideMongo(cfg *config.Config) (*dbmongo.MongoClient, func(), error) {
	mc, err := dbmongo.NewMongoConnection(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mc.Close(ctx)
	}
	return mc, cleanup, nil
}
