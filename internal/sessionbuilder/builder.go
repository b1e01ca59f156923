package sessionbuilder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/smartchess-session/internal/checkpoint"
	"github.com/park285/smartchess-session/internal/chess"
	"github.com/park285/smartchess-session/internal/config"
	"github.com/park285/smartchess-session/internal/gateway"
	"github.com/park285/smartchess-session/internal/history"
	"github.com/park285/smartchess-session/internal/msgcat"
	"github.com/park285/smartchess-session/internal/serializer"
	"github.com/park285/smartchess-session/internal/session"
	"github.com/park285/smartchess-session/internal/store"
	"github.com/park285/smartchess-session/internal/store/memory"
	"github.com/park285/smartchess-session/internal/store/postgres"
	"github.com/park285/smartchess-session/internal/store/sqlite"
)

// Deps holds everything a process needs to run sessions against one store.
// All sessions share Gateway, and with it a single write serializer.
type Deps struct {
	Repo        store.Repository
	Gateway     *gateway.Gateway
	Catalog     *msgcat.Catalog
	Results     *msgcat.Results
	History     *history.Service
	Checkpoints *checkpoint.RedisStore

	logger *zap.Logger
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var cps *checkpoint.RedisStore
	if cfg.CheckpointsEnabled() {
		cps, err = checkpoint.NewRedisStore(ctx, cfg.RedisURL, cfg.CheckpointTTL)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("init checkpoints: %w", err)
		}
	}

	gw := gateway.New(repo, serializer.New(), logger)
	logger.Info("chess_store_ready",
		zap.String("driver", cfg.StoreDriver),
		zap.Bool("checkpoints", cps != nil),
	)
	return &Deps{
		Repo:        repo,
		Gateway:     gw,
		Catalog:     cat,
		Results:     msgcat.NewResults(cat),
		History:     history.New(gw, cat, cfg.HistoryLimit, logger),
		Checkpoints: cps,
		logger:      logger,
	}, nil
}

func openRepository(ctx context.Context, cfg *config.AppConfig) (store.Repository, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		return memory.New(), nil
	case config.DriverSQLite:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return repo, nil
	case config.DriverPostgres:
		repo, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.Options{MaxOpenConns: cfg.DBMaxOpenConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewSession creates a session with its own rule engine over the shared
// gateway.
func (d *Deps) NewSession(onFault func(context.Context, session.PersistFault)) (*session.Session, error) {
	cfg := session.Config{
		Results:        d.Results,
		OnPersistFault: onFault,
	}
	if d.Checkpoints != nil {
		cfg.Checkpoints = d.Checkpoints
	}
	return session.New(chess.NewRulesEngine(), d.Gateway, cfg, d.logger)
}

func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Checkpoints != nil {
		errs = append(errs, d.Checkpoints.Close())
	}
	if d.Repo != nil {
		errs = append(errs, d.Repo.Close())
	}
	return errors.Join(errs...)
}
