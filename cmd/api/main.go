package main

import (
	"CareLens/internal/config"
	"CareLens/internal/server"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogger()

	if err := server.Run(cfg); err != nil {
		log.Fatal().Err(err).Msg("http server error")
	}
}
