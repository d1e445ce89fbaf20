// Package runtime wires configuration, storage, and the HTTP server into a
// runnable backend process.
package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	app "github.com/nexahq/nexa-backend/internal/app"
	"github.com/nexahq/nexa-backend/internal/app/httpapi"
	"github.com/nexahq/nexa-backend/internal/app/services/insights"
	mongostore "github.com/nexahq/nexa-backend/internal/app/storage/mongo"
	"github.com/nexahq/nexa-backend/internal/cache"
	"github.com/nexahq/nexa-backend/internal/config"
	"github.com/nexahq/nexa-backend/internal/vapi"
	"github.com/nexahq/nexa-backend/pkg/logger"
)

const (
	connectTimeout      = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
	rateCleanupInterval = 10 * time.Minute
)

// Application owns the process-level dependencies and the HTTP server.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	httpServer *http.Server
	store      *mongostore.Store
	redis      *cache.RedisCache
}

// NewApplication constructs a fully wired application from the environment.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return newApplication(cfg)
}

func newApplication(cfg *config.Config) (*Application, error) {
	log := logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	limits, err := config.LoadRateLimits(cfg.RateFile)
	if err != nil {
		return nil, fmt.Errorf("load rate limits: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	store, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	var (
		redisCache *cache.RedisCache
		appCache   cache.Cache
	)
	redisCache, err = cache.DialRedis(ctx, cfg.Redis.URL)
	if err != nil {
		log.WithError(err).Warn("redis unavailable, falling back to in-memory cache")
		appCache = cache.NewMemory()
	} else {
		appCache = redisCache
	}

	extractor, err := insights.NewOpenAIExtractor(insights.ExtractorConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("configure extractor: %w", err)
	}

	vapiClient, err := vapi.NewClient(vapi.Config{
		BaseURL:     cfg.Vapi.BaseURL,
		APIKey:      cfg.Vapi.APIKey,
		AssistantID: cfg.Vapi.AssistantID,
		Timeout:     cfg.Vapi.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configure vapi client: %w", err)
	}

	application, err := app.New(app.Options{
		Stores:       app.Stores{Users: store, CallLogs: store},
		Extractor:    extractor,
		Lister:       vapiClient,
		Cache:        appCache,
		Workers:      cfg.Workers.MaxWorkers,
		SyncSchedule: cfg.Vapi.SyncSchedule,
		Log:          log,
	})
	if err != nil {
		return nil, fmt.Errorf("build application: %w", err)
	}

	handler := httpapi.NewHandler(application, store, store, httpapi.Config{
		VapiSecret:          cfg.Vapi.SecretToken,
		AdminJWTSecret:      cfg.Admin.JWTSecret,
		RateLimits:          limits,
		MongoURIConfigured:  cfg.Mongo.URI != "",
		RateCleanupInterval: rateCleanupInterval,
	}, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
		IdleTimeout:  cfg.Server.KeepAliveTimeout,
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		httpServer: httpServer,
		store:      store,
		redis:      redisCache,
	}, nil
}

// Run starts background services and the HTTP server, blocking until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Infof("HTTP server listening on %s", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server, background services, and storage clients.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var firstErr error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		firstErr = err
	}
	if err := a.app.Stop(shutdownCtx); err != nil && firstErr == nil {
		firstErr = err
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.store != nil {
		if err := a.store.Close(shutdownCtx); err != nil {
			a.log.WithError(err).Warn("error closing mongo connection")
		}
	}
	return firstErr
}
