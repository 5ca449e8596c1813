package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"timekeep/internal/auth"
	"timekeep/internal/config"
	"timekeep/internal/hub"
	"timekeep/internal/server"
	"timekeep/internal/store"
	"timekeep/internal/timer"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	gin.SetMode(cfg.GinMode)

	var backend store.Store
	switch cfg.DBDriver {
	case "sqlite":
		db, err := store.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("opening sqlite failed")
		}
		defer db.Close()
		backend = db.Open()
	default:
		backend = store.NewMemory().Open()
	}

	clock := clockwork.NewRealClock()
	tokens := auth.NewTokenRegistry(cfg.ConnTokenTTL, clock)
	stopSweep := make(chan struct{})
	defer close(stopSweep)
	go tokens.RunSweeper(stopSweep)

	router := server.NewRouter(server.Deps{
		Sessions: auth.NewSessionManager(backend.Users, backend.Sessions, clock),
		Tokens:   tokens,
		Timers:   timer.NewEngine(backend.Timers, clock),
		Hub:      hub.New(),
		Clock:    clock,
	})

	log.Info().Str("addr", fmt.Sprintf(":%d", cfg.Port)).Str("db", cfg.DBDriver).Msg("listening")
	log.Fatal().Err(server.Run(cfg, router)).Msg("server stopped")
}
