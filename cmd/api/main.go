package main

import (
	"os"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/pkg/logger"
	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/server"
)

// @title UOL CGPA Calculator API
// @version 1.0
// @description CGPA calculation, saved calculations and auto-save for University of Lahore students

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token for authorization

func main() {
	srv, err := server.NewServer()
	if err != nil {
		// setup errors are logged in detail by bootstrap
		logger.Error().Err(err).Msg("Failed to initialize server")
		os.Exit(1)
	}

	// blocks until shutdown
	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("Server execution failed or shutdown encountered errors")
		os.Exit(1)
	}

	logger.Info().Msg("Application finished gracefully.")
}
