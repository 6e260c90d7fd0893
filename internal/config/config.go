package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration (env + Viper).
type Config struct {
	Env             string
	Port            string
	DatabaseURL     string
	RedisURL        string // empty disables the sweeper; tolerated only in development/test
	SweepInterval   time.Duration
	StartingCredits int64
	AllowedOrigin   string // CORS origin suffix, e.g. .arcana.cards
}

// Load loads config from env and optional .env file.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	_ = viper.ReadInConfig()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	port := viper.GetString("PORT")
	if port == "" {
		port = "8080"
	}
	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	dbURL := viper.GetString("DATABASE_URL")
	if env == "test" && viper.GetString("DATABASE_URL_TEST") != "" {
		dbURL = viper.GetString("DATABASE_URL_TEST")
	}

	sweep := viper.GetDuration("SWEEP_INTERVAL")
	if sweep <= 0 {
		sweep = time.Minute
	}

	starting := viper.GetInt64("STARTING_CREDITS")
	if starting == 0 {
		starting = 100
	}

	return &Config{
		Env:             env,
		Port:            port,
		DatabaseURL:     dbURL,
		RedisURL:        viper.GetString("REDIS_URL"),
		SweepInterval:   sweep,
		StartingCredits: starting,
		AllowedOrigin:   viper.GetString("ALLOWED_ORIGIN_SUFFIX"),
	}, nil
}
