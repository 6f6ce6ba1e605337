package main

import (
	"log"
	"os"

	"milkrun/internal/config"
	"milkrun/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Printf("Warning: Could not load configs/.env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		adminLog := logger.WithComponent("admin")
		adminLog.Error().Err(err).Msg("Command execution failed")
		os.Exit(1)
	}
}
