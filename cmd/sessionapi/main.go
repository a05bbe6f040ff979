// Command sessionapi serves the cookie-session API the session client talks
// to: register, login, logout, current user and password reset.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tlobni/session-core/internal/api"
	"github.com/tlobni/session-core/internal/api/handler"
	"github.com/tlobni/session-core/internal/core/ports"
	"github.com/tlobni/session-core/internal/core/service"
	"github.com/tlobni/session-core/internal/infrastructure/db/memory"
	"github.com/tlobni/session-core/internal/infrastructure/db/mongo"
	"github.com/tlobni/session-core/internal/infrastructure/db/redis"
	"github.com/tlobni/session-core/internal/infrastructure/queue"
	"github.com/tlobni/session-core/internal/pkg/config"
	"github.com/tlobni/session-core/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServer(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.Env == "development",
		Service: "sessionapi",
		Env:     cfg.Env,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("sessionapi stopped")
	}
	log.Info().Msg("shutdown")
}

type backends struct {
	accounts ports.AccountRepository
	sessions ports.SessionRegistry
	resets   ports.ResetTokenStore
	pingers  []handler.Pinger
	closers  []func(context.Context) error
}

func openBackends(ctx context.Context, cfg *config.Server, log zerolog.Logger) (*backends, error) {
	b := &backends{}

	switch cfg.Storage {
	case config.BackendMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, client.Disconnect)

		repo := mongo.NewAccountRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return b, fmt.Errorf("ensure account indexes: %w", err)
		}
		b.accounts = repo
		b.pingers = append(b.pingers, mongo.NewPinger(db))
		log.Info().Str("database", cfg.Mongo.Database).Msg("accounts stored in mongodb")
	default:
		b.accounts = memory.NewAccountRepository()
		log.Warn().Msg("accounts stored in memory, they will not survive a restart")
	}

	switch cfg.Sessions {
	case config.BackendRedis:
		client, err := redis.Connect(ctx, redis.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return b, err
		}
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })
		b.sessions = redis.NewSessionRegistry(client)
		b.resets = redis.NewResetTokenStore(client)
		b.pingers = append(b.pingers, redis.NewPinger(client))
	default:
		b.sessions = memory.NewSessionRegistry()
		b.resets = memory.NewResetTokenStore()
	}
	return b, nil
}

func (b *backends) close(ctx context.Context, log zerolog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("close backend")
		}
	}
}

func run(ctx context.Context, cfg *config.Server, log zerolog.Logger) error {
	b, err := openBackends(ctx, cfg, log)
	if b != nil {
		defer b.close(context.WithoutCancel(ctx), log)
	}
	if err != nil {
		return err
	}

	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	dispatcher := queue.NewDispatcher(cfg.NotifyWorkers,
		queue.NewLogSender(cfg.ResetLinkBase, logger.Component("reset-notices")),
		logger.Component("dispatcher"))
	dispatcher.Start(workerCtx)
	defer func() {
		cancelWorkers()
		dispatcher.Wait()
	}()

	accounts := service.NewAccountService(b.accounts, b.sessions, b.resets, dispatcher,
		service.AccountServiceConfig{
			Secret:     cfg.SessionSecret,
			SessionTTL: cfg.SessionTTL,
			ResetTTL:   cfg.ResetTTL,
		}, logger.Component("accounts"))

	e := api.NewRouter(api.Deps{
		Accounts: accounts,
		Cookie: handler.CookieConfig{
			Name:   cfg.SessionCookie,
			TTL:    cfg.SessionTTL,
			Secure: cfg.Env == "production",
		},
		Pingers: b.pingers,
		Log:     logger.Component("http"),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
