package domain

import (
	"fmt"
	"strings"
	"time"
)

// ResultInProgress is the Game.Result value until a terminal state is reached.
const ResultInProgress = "In Progress"

type User struct {
	ID    int64
	Login string
}

type Game struct {
	ID        int64
	UserID    *int64
	StartTime time.Time
	EndTime   *time.Time
	Result    string
	MoveCount int
}

// Finished reports whether the terminal update has been applied to g.
func (g *Game) Finished() bool {
	return g != nil && g.EndTime != nil
}

type Move struct {
	ID            int64
	GameID        int64
	MoveNumber    int
	FromSquare    string
	ToSquare      string
	PieceType     string
	Color         string
	IsCapture     bool
	CapturedPiece *string
}

// Position addresses a square with zero-based file (X) and rank (Y).
type Position struct {
	X int
	Y int
}

func (p Position) Valid() bool {
	return p.X >= 0 && p.X <= 7 && p.Y >= 0 && p.Y <= 7
}

// String returns the algebraic square name, e.g. "e4".
func (p Position) String() string {
	return fmt.Sprintf("%c%c", rune('a'+p.X), rune('1'+p.Y))
}

func (p Position) index() int { return p.Y*8 + p.X }

// ParseSquare converts an algebraic square name into a Position.
func ParseSquare(s string) (Position, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if len(v) != 2 {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	p := Position{X: int(v[0] - 'a'), Y: int(v[1] - '1')}
	if !p.Valid() {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	return p, nil
}

type Color int

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "White"
	case Black:
		return "Black"
	default:
		return ""
	}
}

func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

type PieceKind int

const (
	NoKind PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

func (k PieceKind) String() string {
	switch k {
	case Pawn:
		return "Pawn"
	case Knight:
		return "Knight"
	case Bishop:
		return "Bishop"
	case Rook:
		return "Rook"
	case Queen:
		return "Queen"
	case King:
		return "King"
	default:
		return ""
	}
}

// fenLetters indexes PieceKind; upper case is applied for white.
var fenLetters = [...]byte{0, 'p', 'n', 'b', 'r', 'q', 'k'}

type Piece struct {
	Kind  PieceKind
	Color Color
}

func (p Piece) Empty() bool { return p.Kind == NoKind }

// Board is a value copy of 64 squares indexed rank-major from a1.
type Board [64]Piece

func (b Board) At(p Position) Piece {
	if !p.Valid() {
		return Piece{}
	}
	return b[p.index()]
}

// With returns a copy of b with sq set to piece.
func (b Board) With(p Position, piece Piece) Board {
	if p.Valid() {
		b[p.index()] = piece
	}
	return b
}

// Placement renders the piece-placement field of a FEN string.
func (b Board) Placement() string {
	var sb strings.Builder
	for y := 7; y >= 0; y-- {
		empty := 0
		for x := 0; x < 8; x++ {
			piece := b[y*8+x]
			if piece.Empty() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			letter := fenLetters[piece.Kind]
			if piece.Color == White {
				letter -= 'a' - 'A'
			}
			sb.WriteByte(letter)
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if y > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// StartingPlacement is the piece placement of the standard initial position.
const StartingPlacement = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

type GameState int

const (
	Uninitialized GameState = iota
	InProgress
	Checkmate
	Stalemate
	InsufficientMaterial
	FivefoldRepetition
	SeventyFiveMoveRule
	ThreefoldRepetition
	FiftyMoveRule
	Resigned
	DrawAgreed
	GameOver
)

var gameStateNames = map[GameState]string{
	Uninitialized:        "Uninitialized",
	InProgress:           "InProgress",
	Checkmate:            "Checkmate",
	Stalemate:            "Stalemate",
	InsufficientMaterial: "InsufficientMaterial",
	FivefoldRepetition:   "FivefoldRepetition",
	SeventyFiveMoveRule:  "SeventyFiveMoveRule",
	ThreefoldRepetition:  "ThreefoldRepetition",
	FiftyMoveRule:        "FiftyMoveRule",
	Resigned:             "Resigned",
	DrawAgreed:           "DrawAgreed",
	GameOver:             "GameOver",
}

func (s GameState) String() string {
	if name, ok := gameStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("GameState(%d)", int(s))
}

// Terminal reports whether s ends the game.
func (s GameState) Terminal() bool {
	return s != Uninitialized && s != InProgress
}

// Drawn reports whether s is a terminal state without a winner.
func (s GameState) Drawn() bool {
	switch s {
	case Stalemate, InsufficientMaterial, FivefoldRepetition, SeventyFiveMoveRule,
		ThreefoldRepetition, FiftyMoveRule, DrawAgreed:
		return true
	}
	return false
}

// Snapshot is an immutable copy of the rule engine's observable state.
type Snapshot struct {
	Board      Board
	SideToMove Color
	State      GameState
}
