package chess

import (
	"context"
	"errors"

	"github.com/park285/smartchess-session/internal/domain"
)

var ErrNotInitialized = errors.New("chess engine not initialized")

// Engine is the rule engine capability consumed by a game session.
// Snapshot accessors are only meaningful after Initialize.
type Engine interface {
	Initialize(ctx context.Context) error
	Board() domain.Board
	SideToMove() domain.Color
	State() domain.GameState
	// ApplyMove reports whether the move was legal and applied. An illegal
	// move leaves the engine unchanged and is not an error.
	ApplyMove(ctx context.Context, from, to domain.Position) (bool, error)
	QueryGameState(ctx context.Context) (domain.GameState, error)
}

// Recorder is implemented by engines that can describe their move history.
type Recorder interface {
	MovesUCI() []string
	FEN() string
}
