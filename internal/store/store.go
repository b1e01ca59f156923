// Package store defines the raw persistence contract implemented by the
// memory, sqlite and postgres backends.
package store

import (
	"context"
	"errors"

	"github.com/park285/smartchess-session/internal/domain"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("record already exists")
	ErrInvalidRecord = errors.New("invalid record")
)

// Repository is the CRUD surface of a backing store. Every mutating call
// commits before returning. Lookups that find nothing return (nil, nil).
type Repository interface {
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)
	GetUserByLogin(ctx context.Context, login string) (*domain.User, error)
	InsertUser(ctx context.Context, user *domain.User) (int64, error)

	InsertGame(ctx context.Context, game *domain.Game) (int64, error)
	GetGame(ctx context.Context, id int64) (*domain.Game, error)
	GetGamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error)
	UpdateGame(ctx context.Context, game *domain.Game) error

	InsertMove(ctx context.Context, move *domain.Move) (int64, error)
	GetMovesByGame(ctx context.Context, gameID int64) ([]*domain.Move, error)

	Close() error
}
