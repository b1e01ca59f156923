// Package gateway is the single entry point sessions use to reach durable
// storage. Mutations are funnelled through a shared serializer.Serializer so
// that writes to one store never interleave.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/obslog"
	"github.com/park285/smartchess-session/internal/serializer"
	"github.com/park285/smartchess-session/internal/store"
)

var ErrInvalidArgument = errors.New("invalid argument")

// Persistence is what the session layer consumes.
type Persistence interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByLogin(ctx context.Context, login string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) (*domain.User, error)

	CreateGame(ctx context.Context, g *domain.Game) (*domain.Game, error)
	GetGameByID(ctx context.Context, id int64) (*domain.Game, error)
	GetGamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error)
	UpdateGame(ctx context.Context, g *domain.Game) error

	CreateMove(ctx context.Context, m *domain.Move) (*domain.Move, error)
	GetMovesByGame(ctx context.Context, gameID int64) ([]*domain.Move, error)
}

type Gateway struct {
	repo   store.Repository
	writes *serializer.Serializer
	logger *zap.Logger
}

// New wraps repo. Every Gateway over the same repo must share writes.
func New(repo store.Repository, writes *serializer.Serializer, logger *zap.Logger) *Gateway {
	if writes == nil {
		writes = serializer.New()
	}
	if logger == nil {
		logger = obslog.L()
	}
	return &Gateway{repo: repo, writes: writes, logger: logger}
}

// Serializer exposes the write token shared with sibling gateways.
func (g *Gateway) Serializer() *serializer.Serializer { return g.writes }

func (g *Gateway) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	if id <= 0 {
		return nil, invalid("user id %d", id)
	}
	return g.repo.GetUserByID(ctx, id)
}

func (g *Gateway) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, invalid("empty login")
	}
	return g.repo.GetUserByLogin(ctx, login)
}

func (g *Gateway) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	if u == nil || strings.TrimSpace(u.Login) == "" {
		return nil, invalid("empty login")
	}
	return serializer.Run(ctx, g.writes, func(ctx context.Context) (*domain.User, error) {
		id, err := g.repo.InsertUser(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return &domain.User{ID: id, Login: strings.TrimSpace(u.Login)}, nil
	})
}

func (g *Gateway) CreateGame(ctx context.Context, game *domain.Game) (*domain.Game, error) {
	if game == nil {
		return nil, invalid("nil game")
	}
	if game.UserID != nil && *game.UserID <= 0 {
		return nil, invalid("user id %d", *game.UserID)
	}
	created, err := serializer.Run(ctx, g.writes, func(ctx context.Context) (*domain.Game, error) {
		id, err := g.repo.InsertGame(ctx, game)
		if err != nil {
			return nil, fmt.Errorf("create game: %w", err)
		}
		out := *game
		out.ID = id
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	g.logger.Debug("chess_game_created", zap.Int64("game_id", created.ID))
	return created, nil
}

func (g *Gateway) GetGameByID(ctx context.Context, id int64) (*domain.Game, error) {
	if id <= 0 {
		return nil, invalid("game id %d", id)
	}
	return g.repo.GetGame(ctx, id)
}

func (g *Gateway) GetGamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error) {
	if userID <= 0 {
		return nil, invalid("user id %d", userID)
	}
	return g.repo.GetGamesByUser(ctx, userID)
}

func (g *Gateway) UpdateGame(ctx context.Context, game *domain.Game) error {
	if game == nil || game.ID <= 0 {
		return invalid("game without id")
	}
	return g.writes.Do(ctx, func(ctx context.Context) error {
		if err := g.repo.UpdateGame(ctx, game); err != nil {
			return fmt.Errorf("update game %d: %w", game.ID, err)
		}
		return nil
	})
}

func (g *Gateway) CreateMove(ctx context.Context, m *domain.Move) (*domain.Move, error) {
	if err := validateMove(m); err != nil {
		return nil, err
	}
	return serializer.Run(ctx, g.writes, func(ctx context.Context) (*domain.Move, error) {
		id, err := g.repo.InsertMove(ctx, m)
		if err != nil {
			return nil, fmt.Errorf("create move %d: %w", m.MoveNumber, err)
		}
		out := *m
		out.ID = id
		return &out, nil
	})
}

func (g *Gateway) GetMovesByGame(ctx context.Context, gameID int64) ([]*domain.Move, error) {
	if gameID <= 0 {
		return nil, invalid("game id %d", gameID)
	}
	return g.repo.GetMovesByGame(ctx, gameID)
}

func validateMove(m *domain.Move) error {
	if m == nil {
		return invalid("nil move")
	}
	if m.GameID <= 0 {
		return invalid("game id %d", m.GameID)
	}
	if m.MoveNumber <= 0 {
		return invalid("move number %d", m.MoveNumber)
	}
	if _, err := domain.ParseSquare(m.FromSquare); err != nil {
		return invalid("from square %q", m.FromSquare)
	}
	if _, err := domain.ParseSquare(m.ToSquare); err != nil {
		return invalid("to square %q", m.ToSquare)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

var _ Persistence = (*Gateway)(nil)
