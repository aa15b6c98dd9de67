package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"oilwise-api-server/config"
	"oilwise-api-server/internal/api/routes"
	"oilwise-api-server/internal/assign"
	"oilwise-api-server/internal/auth"
	"oilwise-api-server/internal/database"
	"oilwise-api-server/internal/lifecycle"
	"oilwise-api-server/internal/s3"
	"oilwise-api-server/internal/socket"
	"oilwise-api-server/internal/store"
)

func main() {
	// .env is optional; config falls back to real env vars and config.yaml.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading environment directly")
	}

	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	db, err := database.Connect(context.Background(), cfg.Mongo)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	if err := database.EnsureIndexes(context.Background(), db); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	if err := database.SeedPolicyReviewer(db); err != nil {
		log.Fatalf("Failed to seed policy reviewer: %v", err)
	}

	expiration, err := time.ParseDuration(cfg.JWT.Expiration)
	if err != nil {
		log.Fatalf("Invalid jwt.expiration: %v", err)
	}
	tokens := auth.NewManager(cfg.JWT.Secret, expiration)

	requestStore := &store.MongoRequestStore{DB: db}
	userStore := &store.MongoUserStore{DB: db}
	usageStore := &store.MongoUsageStore{DB: db}

	hub := socket.NewHub()
	notifier := &socket.Notifier{Hub: hub}

	policy := assign.NewPolicy(userStore)
	controller := lifecycle.NewController(requestStore, policy, notifier)

	// Report storage is optional; without a bucket the export endpoint
	// answers 503 and everything else works.
	var uploader *s3.Uploader
	if cfg.S3.Bucket != "" {
		uploader, err = s3.NewUploader(cfg.S3)
		if err != nil {
			log.Fatalf("Failed to initialize S3 uploader: %v", err)
		}
	} else {
		log.Println("S3 bucket not configured, report uploads disabled")
	}

	router := routes.SetupRouter(routes.Deps{
		Cfg:        cfg,
		Tokens:     tokens,
		Controller: controller,
		Requests:   requestStore,
		Users:      userStore,
		Usage:      usageStore,
		Uploader:   uploader,
		Hub:        hub,
	})

	log.Printf("Starting API server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
