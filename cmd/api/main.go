package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"arcana-backend/internal/config"
	"arcana-backend/internal/interfaces/router"
	"arcana-backend/internal/sweeper"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}

	app, db, rdb, services, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	// Verify connections before serving.
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("get sql db")
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	log.Info().Msg("Postgres connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sw *sweeper.Sweeper
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		log.Info().Msg("Redis connected")
		sw = sweeper.New(db, services.Settlement, sweeper.NewRedisLocker(rdb), cfg.SweepInterval)
		go sw.Run(ctx)
	} else {
		// Without Redis there is no per-listing lock and no sweeper, so
		// expired listings would sit active forever. Tolerable on a dev
		// laptop, fatal anywhere real.
		if cfg.Env != "development" && cfg.Env != "test" {
			log.Fatal().Str("env", cfg.Env).Msg("REDIS_URL is required; the expiration sweeper cannot run without it")
		}
		log.Warn().Msg("REDIS_URL not set; expiration sweeper disabled")
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Info().Msg("shutting down")
		cancel()
		if sw != nil {
			sw.Stop()
		}
		_ = app.Shutdown()
	}()

	log.Info().Str("port", cfg.Port).Msg("server listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
