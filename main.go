package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"platmaster/cmd"
	"platmaster/internal/config"
	"platmaster/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	// Config may legitimately fail here (e.g. no API key yet); logging
	// still has to come up so the commands can report it properly.
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Warning: Could not load configuration: %v", err)
		if err := logger.Setup(logger.DefaultConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	} else {
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
	}

	log := logger.WithComponent("main")
	log.Info().Msg("Starting PlatMaster")

	cmd.Execute()

	log.Info().Msg("PlatMaster shutdown")
	os.Exit(0)
}
