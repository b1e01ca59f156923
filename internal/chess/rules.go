package chess

import (
	"context"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/smartchess-session/internal/domain"
)

// RulesEngine implements Engine on top of corentings/chess.
type RulesEngine struct {
	mu   sync.Mutex
	game *nchess.Game
}

func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

func (e *RulesEngine) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	e.game = nchess.NewGame()
	e.mu.Unlock()
	return nil
}

func (e *RulesEngine) Board() domain.Board {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out domain.Board
	if e.game == nil {
		return out
	}
	board := e.game.Position().Board()
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			piece := board.Piece(nchess.NewSquare(nchess.File(x), nchess.Rank(y)))
			if piece == nchess.NoPiece {
				continue
			}
			out = out.With(domain.Position{X: x, Y: y}, domain.Piece{
				Kind:  kindFrom(piece.Type()),
				Color: colorFrom(piece.Color()),
			})
		}
	}
	return out
}

func (e *RulesEngine) SideToMove() domain.Color {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return domain.NoColor
	}
	return colorFrom(e.game.Position().Turn())
}

func (e *RulesEngine) State() domain.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return domain.Uninitialized
	}
	return stateFrom(e.game)
}

func (e *RulesEngine) QueryGameState(ctx context.Context) (domain.GameState, error) {
	if err := ctx.Err(); err != nil {
		return domain.Uninitialized, err
	}
	return e.State(), nil
}

// ApplyMove plays from→to. Pawns reaching the last rank promote to a queen.
func (e *RulesEngine) ApplyMove(ctx context.Context, from, to domain.Position) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return false, ErrNotInitialized
	}
	if e.game.Outcome() != nchess.NoOutcome {
		return false, nil
	}
	if !from.Valid() || !to.Valid() || from == to {
		return false, nil
	}
	uci := from.String() + to.String()
	if e.promotes(from, to) {
		uci += "q"
	}
	if err := e.game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return false, nil
	}
	return true, nil
}

// MovesUCI returns the moves played since Initialize in UCI notation.
func (e *RulesEngine) MovesUCI() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return nil
	}
	moves := e.game.Moves()
	out := make([]string, 0, len(moves))
	for _, mv := range moves {
		out = append(out, mv.String())
	}
	return out
}

func (e *RulesEngine) FEN() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return ""
	}
	return e.game.FEN()
}

func (e *RulesEngine) promotes(from, to domain.Position) bool {
	pos := e.game.Position()
	piece := pos.Board().Piece(nchess.NewSquare(nchess.File(from.X), nchess.Rank(from.Y)))
	if piece == nchess.NoPiece || piece.Type() != nchess.Pawn || piece.Color() != pos.Turn() {
		return false
	}
	if piece.Color() == nchess.White {
		return to.Y == 7
	}
	return to.Y == 0
}

func stateFrom(game *nchess.Game) domain.GameState {
	if game.Outcome() == nchess.NoOutcome {
		return domain.InProgress
	}
	switch game.Method() {
	case nchess.Checkmate:
		return domain.Checkmate
	case nchess.Stalemate:
		return domain.Stalemate
	case nchess.InsufficientMaterial:
		return domain.InsufficientMaterial
	case nchess.FivefoldRepetition:
		return domain.FivefoldRepetition
	case nchess.SeventyFiveMoveRule:
		return domain.SeventyFiveMoveRule
	case nchess.ThreefoldRepetition:
		return domain.ThreefoldRepetition
	case nchess.FiftyMoveRule:
		return domain.FiftyMoveRule
	case nchess.Resignation:
		return domain.Resigned
	case nchess.DrawOffer:
		return domain.DrawAgreed
	default:
		return domain.GameOver
	}
}

func colorFrom(c nchess.Color) domain.Color {
	switch c {
	case nchess.White:
		return domain.White
	case nchess.Black:
		return domain.Black
	default:
		return domain.NoColor
	}
}

func kindFrom(pt nchess.PieceType) domain.PieceKind {
	switch pt {
	case nchess.Pawn:
		return domain.Pawn
	case nchess.Knight:
		return domain.Knight
	case nchess.Bishop:
		return domain.Bishop
	case nchess.Rook:
		return domain.Rook
	case nchess.Queen:
		return domain.Queen
	case nchess.King:
		return domain.King
	default:
		return domain.NoKind
	}
}
