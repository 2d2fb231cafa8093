package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"planhub/api/internal/app"
	"planhub/api/internal/config"
	"planhub/api/internal/email"
	"planhub/api/internal/export"
	"planhub/api/internal/ratelimit"
	"planhub/api/internal/search"
	"planhub/api/internal/session"
	"planhub/api/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	dataStore := store.NewPostgresStore(db)

	// Refresh sessions live in Redis when it is reachable; Postgres carries
	// them otherwise so a missing Redis never takes auth down.
	var service *app.Service
	redisStore, err := session.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, storing refresh sessions in postgres")
		service = app.New(cfg, dataStore, dataStore)
	} else {
		log.Info().Msg("storing refresh sessions in redis")
		defer redisStore.Close()
		service = app.New(cfg, dataStore, redisStore)
	}

	sqlSearch := search.NewSQLSearch(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
	}
	searchService := search.NewService(meiliClient, sqlSearch)
	defer searchService.Close()
	service.SetSearchService(searchService)

	emailService := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if emailService.IsConfigured() {
		log.Info().Str("host", cfg.SMTPHost).Msg("smtp configured")
	}
	service.SetEmailService(emailService)

	service.SetExportService(export.NewService(app.NewExportDataStore(dataStore)))

	limiter := buildLimiter(cfg)

	httpServer := app.NewHTTPServer(service, limiter, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("planhub api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

// buildLimiter picks the counter backend. Redis keeps limits consistent
// across replicas; memory is the single-node default.
func buildLimiter(cfg config.Config) *ratelimit.Limiter {
	limits := ratelimit.Config{
		Limit:         cfg.RateLimit,
		Window:        cfg.RateWindow,
		LoginLimit:    cfg.LoginRateLimit,
		LoginWindow:   cfg.LoginRateWindow,
		BlockDuration: cfg.LoginBlockDuration,
	}

	if cfg.RateLimitBackend == "redis" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err == nil {
			client := redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err = client.Ping(pingCtx).Err(); err == nil {
				return ratelimit.New(ratelimit.NewRedisStore(client), limits)
			}
		}
		log.Warn().Err(err).Msg("redis rate-limit backend unavailable, using memory")
	}

	mem := ratelimit.NewMemoryStore()
	mem.StartPruning(time.Minute)
	return ratelimit.New(mem, limits)
}
