//go:build wireinject
// +build wireinject

package main

import (
	"music_backend/internal/app"
	"music_backend/internal/auth"
	"music_backend/internal/captcha"
	"music_backend/internal/config"
	"music_backend/internal/firebase"
	"music_backend/internal/jobs"
	"music_backend/internal/loginlog"
	"music_backend/internal/music"
	"music_backend/internal/platform/elasticsearch"
	"music_backend/internal/shared"
	"music_backend/internal/user"

	"github.com/google/wire"
)

var platformSet = wire.NewSet(
	provideLogger,
	provideDB,
	provideRedis,
	providePublisher,
	elasticsearch.NewClient,
)

var authSet = wire.NewSet(
	auth.NewJWTService,
	wire.Bind(new(shared.TokenService), new(*auth.JWTService)),
	auth.NewGORMRefreshTokenRepository,
	auth.NewBlocklistService,
	auth.NewSessionService,
	wire.Bind(new(shared.SessionIssuer), new(*auth.SessionService)),
)

var userSet = wire.NewSet(
	user.NewGORMRepository,
	user.NewDirectory,
	wire.Bind(new(shared.UserProvider), new(*user.Directory)),
	user.NewService,

	captcha.NewService,
	wire.Bind(new(shared.CaptchaVerifier), new(*captcha.Service)),

	firebase.NewService,
	wire.Bind(new(shared.IDTokenVerifier), new(*firebase.Service)),

	loginlog.NewGORMRepository,
	loginlog.NewService,
	wire.Bind(new(shared.LoginRecorder), new(*loginlog.Service)),
)

var musicSet = wire.NewSet(
	music.NewGORMRepository,
	music.NewRenderer,
	music.NewService,
)

var handlerSet = wire.NewSet(
	wire.Bind(new(user.Service), new(*user.ServiceImplementation)),
	user.NewHandler,
	auth.NewHandler,
	captcha.NewHandler,
	loginlog.NewHandler,
	music.NewHandler,
	wire.Struct(new(app.Handlers), "*"),
)

// initializeServer is the main Wire injector.
func initializeServer(cfg *config.Config) (*app.Server, func(), error) {
	wire.Build(
		platformSet,
		authSet,
		userSet,
		musicSet,
		handlerSet,

		jobs.NewLocker,
		jobs.NewSessionCleanupJob,
		wire.Bind(new(jobs.SessionPurger), new(*auth.SessionService)),
		wire.Bind(new(jobs.LoginLogPurger), new(*loginlog.Service)),
		jobs.NewMusicCleanupJob,
		wire.Bind(new(jobs.MusicFilePurger), new(*music.Service)),

		app.NewServer,
	)
	return nil, nil, nil
}

// initializeUserService builds the user service for CLI commands.
func initializeUserService(cfg *config.Config) (*user.ServiceImplementation, func(), error) {
	wire.Build(
		platformSet,
		authSet,
		userSet,
	)
	return nil, nil, nil
}
