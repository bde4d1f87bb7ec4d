package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ayush/estate-marketplace/internal/auth"
	"github.com/ayush/estate-marketplace/internal/config"
	"github.com/ayush/estate-marketplace/internal/events"
	"github.com/ayush/estate-marketplace/internal/listing"
	"github.com/ayush/estate-marketplace/internal/logging"
	"github.com/ayush/estate-marketplace/internal/server"
	"github.com/ayush/estate-marketplace/internal/store"
	"github.com/ayush/estate-marketplace/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		logging.Fatal().Err(err).Msg("postgres connect")
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		logging.Fatal().Err(err).Msg("postgres migrate")
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logging.Fatal().Err(err).Msg("mongo connect")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.Mongo.Database))
	if err := mongoStore.EnsureIndexes(ctx); err != nil {
		logging.Fatal().Err(err).Msg("mongo indexes")
	}

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password)
	if err != nil {
		logging.Fatal().Err(err).Msg("redis connect")
	}
	defer rdb.Close()
	views := store.NewViewCounter(rdb)

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		ctx, cfg.Minio.Endpoint, cfg.Minio.AccessKey,
		cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL,
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("minio connect")
	}

	// ── NATS ─────────────────────────────────────────────────
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATS.URL != "" {
		natsPub, nc, err := events.Connect(cfg.NATS.URL)
		if err != nil {
			logging.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Drain()
		publisher = natsPub
	} else {
		logging.Info().Msg("NATS_URL not set, domain events disabled")
	}

	// ── Auth ─────────────────────────────────────────────────
	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("token manager")
	}
	cookies := auth.Cookies{Name: cfg.Auth.CookieName, Secure: cfg.IsProduction(), TTL: cfg.Auth.TokenTTL}
	authService := auth.NewService(pgStore, tokens, cfg.Auth.DefaultAvatar)

	// ── Handlers ─────────────────────────────────────────────
	router := server.NewRouter(server.Handlers{
		Auth:    auth.NewHandler(authService, pgStore, cookies),
		Listing: listing.NewHandler(mongoStore, minioStore, views, publisher, cfg.Minio.PublicBaseURL),
		User:    user.NewHandler(pgStore, mongoStore, cookies, publisher),
	}, server.Options{
		Tokens:         tokens,
		CookieName:     cfg.Auth.CookieName,
		CORSOrigins:    cfg.Server.CORSOrigins,
		AuthRateLimit:  cfg.Auth.RateLimitReqs,
		AuthRateWindow: cfg.Auth.RateLimitWindow,
	})

	// ── Server ───────────────────────────────────────────────
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logging.Info().Str("port", cfg.Server.Port).Str("environment", cfg.Server.Environment).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown")
	}
}
