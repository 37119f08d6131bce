package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"aipixels/internal/adapter/repo"
	"aipixels/internal/domain"
	"aipixels/internal/fetch"
	"aipixels/internal/generate"
	"aipixels/internal/http/handlers"
	httpapi "aipixels/internal/http/httpapi"
	"aipixels/internal/infra"
	"aipixels/internal/infra/geoip"
	"aipixels/internal/persist"
	"aipixels/internal/providers/replicate"
	"aipixels/internal/providers/translate"
	"aipixels/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	store, storageBackend, staticDir := buildStorage(cfg, &logger)
	metadata, metadataBackend, closeMetadata := buildMetadata(ctx, cfg, logger)
	defer closeMetadata()

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	client := replicate.NewClient(replicate.Options{
		APIKey:  cfg.ReplicateAPIToken,
		BaseURL: cfg.ReplicateBaseURL,
		Model:   cfg.ReplicateModel,
		Logger:  &logger,
	})
	generator := replicate.NewGenerator(client, &logger)
	if !generator.Configured() {
		logger.Warn().Msg("REPLICATE_API_TOKEN not set, generation requests will fail")
	}

	popts := persist.Options{Store: store, Repository: metadata, Logger: &logger}
	if store != nil {
		popts.Fetcher = fetch.New(fetch.Options{HostAllowlist: cfg.ArtifactHostAllowlist})
	}

	gopts := generate.Options{
		Generator: generator,
		Persister: persist.NewCoordinator(popts),
		PollPolicy: replicate.PollPolicy{
			Interval:    cfg.PollInterval,
			MaxAttempts: cfg.PollMaxAttempts,
			Backoff:     cfg.PollBackoff,
			MaxInterval: cfg.PollMaxInterval,
			Deadline:    cfg.PollDeadline,
		},
		PromptMaxLength:  cfg.PromptMaxLength,
		RemainingCredits: cfg.RemainingCredits,
		Logger:           &logger,
	}
	if cfg.TranslationEnabled {
		gopts.Translator = translate.NewService(&logger,
			&translate.Naver{ClientID: cfg.NaverClientID, ClientSecret: cfg.NaverClientSecret},
			&translate.MyMemory{BaseURL: cfg.MyMemoryBaseURL},
			translate.Glossary{},
		)
	}

	app := &handlers.App{
		Generator:   generate.New(gopts),
		Predictions: generator,
		Storage:     storageBackend,
		Metadata:    metadataBackend,
		Logger:      &logger,
	}
	router := httpapi.NewRouter(app, httpapi.Options{
		JWTSecret:       cfg.JWTSecret,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSAllowedOrigins,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   resolver.Lookup(),
		StaticDir:       staticDir,
		Logger:          logger,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("storage", nameOr(storageBackend.Name)).
			Str("metadata", nameOr(metadataBackend.Name)).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

// buildStorage prefers the remote bucket, then a local directory served under
// /static, and otherwise leaves storage disabled. The returned interface is
// nil, never a typed nil, when nothing is configured.
func buildStorage(cfg *infra.Config, logger *infra.Logger) (domain.ObjectStore, handlers.Backend, string) {
	if cfg.RemoteStorageConfigured() {
		s, err := storage.NewSupabaseStore(storage.SupabaseOptions{
			BaseURL:    cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.StorageBucket,
			Logger:     logger,
		})
		if err == nil {
			return s, handlers.Backend{Name: "supabase", Pinger: s}, ""
		}
		logger.Error().Err(err).Msg("remote storage disabled")
	}
	if cfg.LocalStoragePath != "" {
		s, err := storage.NewFileStore(cfg.LocalStoragePath, cfg.StorageBaseURL)
		if err == nil {
			return s, handlers.Backend{Name: "filesystem"}, s.BasePath()
		}
		logger.Error().Err(err).Msg("local storage disabled")
	}
	return nil, handlers.Backend{}, ""
}

func buildMetadata(ctx context.Context, cfg *infra.Config, logger zerolog.Logger) (domain.ArtifactRepository, handlers.Backend, func()) {
	noop := func() {}
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("metadata store disabled")
			return nil, handlers.Backend{}, noop
		}
		r := repo.NewArtifactRepository(infra.NewSQLRunner(pool, logger))
		if err := r.EnsureSchema(ctx); err != nil {
			logger.Error().Err(err).Msg("ensure images table")
		}
		return r, handlers.Backend{Name: "postgres", Pinger: r}, pool.Close
	}
	if cfg.SQLitePath != "" {
		db, err := repo.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			logger.Error().Err(err).Msg("metadata store disabled")
			return nil, handlers.Backend{}, noop
		}
		r, err := repo.NewArtifactRepositorySQLite(db)
		if err != nil {
			_ = db.Close()
			logger.Error().Err(err).Msg("metadata store disabled")
			return nil, handlers.Backend{}, noop
		}
		return r, handlers.Backend{Name: "sqlite", Pinger: r}, func() { _ = db.Close() }
	}
	return nil, handlers.Backend{}, noop
}

func nameOr(name string) string {
	if name == "" {
		return "disabled"
	}
	return name
}
