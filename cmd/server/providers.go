package main

import (
	"log"

	"music_backend/internal/config"
	"music_backend/internal/platform/broker"
	"music_backend/internal/platform/database"
	"music_backend/internal/platform/logger"
	"music_backend/internal/platform/redis"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	appLogger, err := logger.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		// Sync fails on some terminals (ENOTTY / EINVAL); nothing to do about it.
		if err := appLogger.Sync(); err != nil {
			log.Printf("WARN: logger sync: %v", err)
		}
	}
	return appLogger, cleanup, nil
}

func provideDB(cfg *config.Config, appLogger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewGORM(cfg, appLogger)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { database.CloseGORMDB(db, appLogger) }, nil
}

func provideRedis(cfg *config.Config, appLogger *zap.Logger) (*goredis.Client, func(), error) {
	client, err := redis.NewClient(cfg, appLogger)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { redis.Close(client, appLogger) }, nil
}

func providePublisher(cfg *config.Config, appLogger *zap.Logger) (*broker.Publisher, func()) {
	publisher := broker.NewPublisher(cfg, appLogger)
	return publisher, publisher.Close
}
