package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fapiaoflow/invoice-normalize-service/api"
	"github.com/fapiaoflow/invoice-normalize-service/internal/auth"
	"github.com/fapiaoflow/invoice-normalize-service/internal/db"
	"github.com/fapiaoflow/invoice-normalize-service/internal/fields"
	"github.com/fapiaoflow/invoice-normalize-service/internal/models"
	"github.com/fapiaoflow/invoice-normalize-service/internal/ocr"
	"github.com/fapiaoflow/invoice-normalize-service/internal/storage"
)

func main() {
	initLogging()

	// A broken alias table means silently wrong output on every request,
	// so refuse to start.
	if err := fields.ValidateMapping(); err != nil {
		slog.Error("field name mapping is invalid", "error", err)
		os.Exit(1)
	}

	if err := auth.Init(); err != nil {
		slog.Error("failed to initialize auth", "error", err)
		os.Exit(1)
	}
	slog.Info("JWT authentication initialized")

	if err := db.Init(); err != nil {
		slog.Warn("database not available, running without persistence", "error", err)
	} else {
		defer db.Close()
	}

	if err := storage.Init(); err != nil {
		slog.Warn("object storage not available, documents will not be stored", "error", err)
	}

	config, err := loadConfig("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	provider := ocr.NewClient(config.OCR)
	handler := api.NewHandler(config, provider)
	router := handler.SetupRoutes()

	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	protectedRouter := auth.JWTMiddleware(router)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	slog.Info("starting invoice normalize service",
		"addr", addr,
		"version", api.Version,
		"database", db.Pool != nil,
		"storage", storage.Client != nil,
		"ocr_endpoint", config.OCR.Endpoint,
	)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func initLogging() {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

func loadConfig(path string) (*models.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if endpoint := os.Getenv("OCR_ENDPOINT"); endpoint != "" {
		config.OCR.Endpoint = endpoint
	}
	if appID := os.Getenv("OCR_APP_ID"); appID != "" {
		config.OCR.AppID = appID
	}
	if secret := os.Getenv("OCR_SECRET_KEY"); secret != "" {
		config.OCR.SecretKey = secret
	}

	if config.Host == "" {
		config.Host = "0.0.0.0"
	}
	if config.Port == 0 {
		config.Port = 8080
	}

	return &config, nil
}
