package main

import (
	"context"
	"fmt"
	"os"

	"catalog/internal/config"
	"catalog/internal/database"
	"catalog/internal/logger"
	"catalog/internal/repositories"
	"catalog/internal/server"
	"catalog/internal/services"
	"catalog/pkg/rabbitmq"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile, Env: cfg.AppEnv})

	application, err := newApplication(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}

	go func() {
		log.Info().Str("addr", cfg.AppPort).Str("driver", cfg.DBDriver).Msg("starting server")
		if err := application.app.Listen(cfg.AppPort); err != nil {
			log.Error().Err(err).Msg("server stopped with error")
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"catalog": func(ctx context.Context) error {
				log.Info().Msg("graceful shutdown initiated")
				return application.shutdown(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Info().Int("exit_code", exitCode).Msg("application exited")
	os.Exit(exitCode)
}

// application owns the HTTP app and everything that has to be released on shutdown.
type application struct {
	app *fiber.App
	// closers are released in reverse order once the HTTP server has stopped.
	closers []namedCloser
	log     zerolog.Logger
}

type namedCloser struct {
	name  string
	close func() error
}

func newApplication(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*application, error) {
	a := &application{log: log}
	checks := map[string]server.HealthCheck{}

	repo, err := a.openStore(cfg, checks)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	var opts []services.Option
	opts = append(opts, services.WithLogger(log))
	if cfg.EventsEnabled() {
		if publisher := a.connectEvents(cfg); publisher != nil {
			opts = append(opts, services.WithPublisher(publisher))
		}
	}
	productService := services.NewProductService(repo, opts...)

	if cfg.SeedProducts {
		if err := repositories.SeedProducts(ctx, repo, log); err != nil {
			a.closeAll()
			return nil, err
		}
	}

	a.app = server.New(server.Options{
		Products:     productService,
		Log:          log,
		Diagnostics:  cfg.DiagnosticsEnabled,
		HealthChecks: checks,
	})
	return a, nil
}

// openStore builds the configured product store, wrapping it with Redis when a cache is configured.
func (a *application) openStore(cfg *config.Config, checks map[string]server.HealthCheck) (repositories.ProductRepository, error) {
	var repo repositories.ProductRepository
	switch cfg.DBDriver {
	case "memory":
		repo = repositories.NewInMemoryProductRepository()
		checks["store"] = func(context.Context) error { return nil }
	default:
		db, err := database.Open(cfg.DBDriver, cfg.DatabaseDSN, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, namedCloser{"database", func() error { return database.Close(db) }})
		checks["store"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
		repo = repositories.NewGORMProductRepository(db)
	}

	if !cfg.CacheEnabled() {
		return repo, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	a.closers = append(a.closers, namedCloser{"redis", client.Close})
	cached := repositories.NewCachedProductRepository(repo, client, cfg.CachePrefix, cfg.CacheTTL, a.log)
	checks["cache"] = cached.Ping
	if err := cached.Ping(context.Background()); err != nil {
		// Lookups fall back to the store until Redis is reachable.
		a.log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable at startup")
	}
	return cached, nil
}

// connectEvents connects to RabbitMQ and starts a consumer that logs received events.
// Events are optional: a broker that cannot be reached disables publishing.
func (a *application) connectEvents(cfg *config.Config) *rabbitmq.Client {
	client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL}, a.log)
	if err != nil {
		a.log.Warn().Err(err).Msg("product events disabled")
		return nil
	}
	a.closers = append(a.closers, namedCloser{"rabbitmq", client.Close})

	err = client.ConsumeProductEvents(func(event rabbitmq.ProductEvent) error {
		a.log.Info().
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Int64("product_id", event.ProductID).
			Time("occurred_at", event.OccurredAt).
			Msg("received product event")
		return nil
	})
	if err != nil {
		a.log.Error().Err(err).Msg("failed to start product event consumer")
	}
	return client
}

func (a *application) shutdown(ctx context.Context) error {
	var shutdownErr error
	if a.app != nil {
		if err := a.app.ShutdownWithContext(ctx); err != nil {
			a.log.Error().Err(err).Msg("error during server shutdown")
			shutdownErr = err
		}
	}
	if err := a.closeAll(); err != nil && shutdownErr == nil {
		shutdownErr = err
	}
	return shutdownErr
}

// closeAll releases resources in reverse order of acquisition and returns the first error.
func (a *application) closeAll() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.log.Error().Err(err).Str("resource", c.name).Msg("failed to close resource")
			if first == nil {
				first = err
			}
		}
	}
	a.closers = nil
	return first
}
