package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/shortlink/internal/adapter/repository/rediscache"
	"github.com/vadimbarashkov/shortlink/internal/config"
	"github.com/vadimbarashkov/shortlink/internal/entity"
	"github.com/vadimbarashkov/shortlink/internal/usecase"
	"github.com/vadimbarashkov/shortlink/migrations"
	"github.com/vadimbarashkov/shortlink/pkg/postgres"
	"github.com/vadimbarashkov/shortlink/pkg/redis"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/shortlink/internal/adapter/delivery/http"
	pgrepo "github.com/vadimbarashkov/shortlink/internal/adapter/repository/postgres"
)

const shutdownTimeout = 10 * time.Second

type urlRepository interface {
	Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error)
	RecordAccess(ctx context.Context, shortCode, ip string, accessedAt time.Time) (*entity.URL, error)
	RetrieveStats(ctx context.Context, shortCode string) (*entity.URL, error)
	List(ctx context.Context) ([]*entity.URL, error)
	Update(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	Remove(ctx context.Context, shortCode string) error
}

func NewLogger(cfg *config.Config) *httplog.Logger {
	prod := cfg.Env == config.EnvProd

	return httplog.NewLogger("shortlink", httplog.Options{
		JSON:            prod,
		LogLevel:        cfg.Log.SlogLevel(),
		Concise:         !prod,
		RequestHeaders:  prod,
		QuietDownRoutes: []string{"/api/v1/ping", "/metrics"},
		QuietDownPeriod: 10 * time.Second,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

func newHandler(cfg *config.Config, urlRepo urlRepository, logger *httplog.Logger) http.Handler {
	urlUseCase := usecase.NewURLUseCase(
		urlRepo,
		usecase.WithShortCodeLength(cfg.ShortCode.Length),
		usecase.WithMaxAttempts(cfg.ShortCode.MaxAttempts),
		usecase.WithReservedCodes(delivery.ReservedRoutes...),
	)

	return delivery.NewRouter(logger, urlUseCase, cfg.BaseURL)
}

// Run wires the service from cfg and serves HTTP until ctx is cancelled.
// It returns early when the store cannot be reached at startup.
func Run(ctx context.Context, cfg *config.Config, logger *httplog.Logger) error {
	const op = "app.Run"

	var urlRepo urlRepository

	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := postgres.New(
			ctx,
			cfg.Postgres.DSN(),
			cfg.Postgres.ConnectTimeout,
			postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return fmt.Errorf("%s: failed to connect to database: %w", op, err)
		}
		defer db.Close()

		if err := postgres.RunMigrations(migrations.FS, cfg.Postgres.DSN()); err != nil {
			return fmt.Errorf("%s: failed to run migrations: %w", op, err)
		}

		urlRepo = pgrepo.NewURLRepository(db, pgrepo.WithQueryTimeout(cfg.Postgres.QueryTimeout))
	default:
		logger.Warn("using in-memory storage, data will not survive a restart")
		urlRepo = memory.NewURLRepository()
	}

	if cfg.Redis.Enabled() {
		rdb, err := redis.New(ctx, redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("%s: failed to connect to redis: %w", op, err)
		}
		defer rdb.Close()

		urlRepo = rediscache.NewURLRepository(urlRepo, rdb, cfg.Redis.TTL, logger.Logger)
	}

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        newHandler(cfg, urlRepo, logger),
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("storage", cfg.Storage),
			slog.Bool("cache", cfg.Redis.Enabled()),
		)

		var err error

		switch {
		case cfg.HTTPServer.CertFile != "":
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
