package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-portal/internal/auth"
	"github.com/ukydev/fleet-portal/internal/config"
	"github.com/ukydev/fleet-portal/internal/db"
	"github.com/ukydev/fleet-portal/internal/events"
	"github.com/ukydev/fleet-portal/internal/handlers"
	"github.com/ukydev/fleet-portal/internal/middleware"
	"github.com/ukydev/fleet-portal/internal/storage"
	"go.mongodb.org/mongo-driver/mongo"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	ctx := context.Background()
	client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Warn("MongoDB disconnect failed")
		}
	}()
	log.WithField("database", cfg.Mongo.Database).Info("Connected to MongoDB")

	store := db.NewStore(client, cfg.Mongo.Database)
	if err := store.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("Failed to create indexes")
	}

	authService, err := auth.NewService(cfg.JWT.Secret, cfg.JWT.Expiration)
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	var blobs storage.BlobStore
	if cfg.S3.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.S3.Bucket, cfg.S3.Region, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
		if err != nil {
			log.WithError(err).Fatal("Failed to configure S3")
		}
		blobs = s3Store
	} else {
		log.Warn("AWS_S3_BUCKET not set; inspection photo uploads are disabled")
	}

	publisher, closePublisher, err := newPublisher(cfg.MQTT)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MQTT broker")
	}
	defer closePublisher()

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	go sweepLimiter(limiter, time.Hour)

	router := handlers.NewRouter(handlers.Deps{
		AuthService:    authService,
		AuthMW:         middleware.NewAuthMiddleware(authService, store.Users, cfg.Session.RoleTTL),
		Users:          store.Users,
		Vehicles:       store.Vehicles,
		Bookings:       store.Bookings,
		Inspections:    store.Inspections,
		Blobs:          blobs,
		Publisher:      publisher,
		RateLimiter:    limiter,
		Health:         pingHealth(client),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.S3.MaxUploadMB * 1024 * 1024,
		ImageURLExpiry: cfg.S3.URLExpiry,
		ProxyTimeout:   cfg.Proxy.Timeout,
		ProxyMaxBytes:  cfg.Proxy.MaxBytes,
	})

	server := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(log.Fields{"addr": server.Addr, "environment": cfg.Server.Environment}).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}
}

// newPublisher returns the MQTT publisher when a broker is configured and a
// no-op publisher otherwise.
func newPublisher(cfg config.MQTTConfig) (events.Publisher, func(), error) {
	if cfg.BrokerURL == "" {
		log.Info("MQTT_BROKER_URL not set; booking events are not published")
		return events.NopPublisher{}, func() {}, nil
	}
	p, err := events.NewMQTTPublisher(cfg.BrokerURL, cfg.ClientID, cfg.TopicPrefix)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

func pingHealth(client *mongo.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return client.Ping(ctx, nil)
	}
}

// sweepLimiter periodically forgets idle rate limit buckets.
func sweepLimiter(limiter *middleware.RateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		limiter.Cleanup(every)
	}
}
