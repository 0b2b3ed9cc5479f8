package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/rmacedo/patrol-ops/api"
	"github.com/rmacedo/patrol-ops/auth"
	"github.com/rmacedo/patrol-ops/db"
	"github.com/rmacedo/patrol-ops/realtime"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		// A missing .env is fine in deployed environments.
		os.Stderr.WriteString("warning: no .env file loaded\n")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := db.Open()
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	tokens := auth.NewServiceFromEnv()
	gateway := realtime.NewGateway(store, tokens, logger)
	handlers := api.NewHandlers(store, tokens, logger)
	router := api.NewRouter(handlers, gateway.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Info("starting server", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, router); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
