package chess

import (
	"context"
	"errors"
	"testing"

	"github.com/park285/smartchess-session/internal/domain"
)

func sq(t *testing.T, name string) domain.Position {
	t.Helper()
	p, err := domain.ParseSquare(name)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", name, err)
	}
	return p
}

func newInitialized(t *testing.T) *RulesEngine {
	t.Helper()
	e := NewRulesEngine()
	if err := e.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e
}

func play(t *testing.T, e *RulesEngine, moves ...string) {
	t.Helper()
	for _, mv := range moves {
		ok, err := e.ApplyMove(context.Background(), sq(t, mv[:2]), sq(t, mv[2:4]))
		if err != nil {
			t.Fatalf("ApplyMove(%s): %v", mv, err)
		}
		if !ok {
			t.Fatalf("move %s rejected", mv)
		}
	}
}

func TestApplyMoveBeforeInitialize(t *testing.T) {
	e := NewRulesEngine()
	if e.State() != domain.Uninitialized {
		t.Fatalf("expected Uninitialized, got %s", e.State())
	}
	_, err := e.ApplyMove(context.Background(), sq(t, "e2"), sq(t, "e4"))
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInitializeStartingPosition(t *testing.T) {
	e := newInitialized(t)
	if got := e.Board().Placement(); got != domain.StartingPlacement {
		t.Fatalf("unexpected placement %q", got)
	}
	if e.SideToMove() != domain.White {
		t.Fatalf("expected white to move")
	}
	st, err := e.QueryGameState(context.Background())
	if err != nil || st != domain.InProgress {
		t.Fatalf("QueryGameState = %s, %v", st, err)
	}
}

func TestIllegalMoveLeavesEngineUnchanged(t *testing.T) {
	e := newInitialized(t)
	before := e.Board()
	ok, err := e.ApplyMove(context.Background(), sq(t, "e2"), sq(t, "e5"))
	if err != nil {
		t.Fatalf("ApplyMove: %v", err)
	}
	if ok {
		t.Fatalf("e2e5 should be illegal")
	}
	if e.Board() != before || e.SideToMove() != domain.White {
		t.Fatalf("engine state changed after illegal move")
	}
	if len(e.MovesUCI()) != 0 {
		t.Fatalf("expected no recorded moves")
	}
}

func TestLegalMoveAdvancesSide(t *testing.T) {
	e := newInitialized(t)
	play(t, e, "e2e4")
	b := e.Board()
	if p := b.At(sq(t, "e4")); p.Kind != domain.Pawn || p.Color != domain.White {
		t.Fatalf("expected white pawn on e4, got %+v", p)
	}
	if !b.At(sq(t, "e2")).Empty() {
		t.Fatalf("e2 should be empty")
	}
	if e.SideToMove() != domain.Black {
		t.Fatalf("expected black to move")
	}
	if got := e.MovesUCI(); len(got) != 1 || got[0] != "e2e4" {
		t.Fatalf("unexpected moves %v", got)
	}
	if e.FEN() == "" {
		t.Fatalf("expected FEN")
	}
}

func TestScholarsMateIsCheckmateWithBlackToMove(t *testing.T) {
	e := newInitialized(t)
	play(t, e, "e2e4", "e7e5", "f1c4", "b8c6", "d1h5", "g8f6", "h5f7")
	if e.State() != domain.Checkmate {
		t.Fatalf("expected checkmate, got %s", e.State())
	}
	if e.SideToMove() != domain.Black {
		t.Fatalf("mated side should be to move")
	}
	ok, err := e.ApplyMove(context.Background(), sq(t, "a7"), sq(t, "a6"))
	if err != nil || ok {
		t.Fatalf("moves after checkmate must be rejected: ok=%v err=%v", ok, err)
	}
}

func TestPawnAutoPromotesToQueen(t *testing.T) {
	e := newInitialized(t)
	play(t, e, "a2a4", "b7b5", "a4b5", "a7a6", "b5a6", "g8f6", "a6a7", "h7h6", "a7b8")
	if p := e.Board().At(sq(t, "b8")); p.Kind != domain.Queen || p.Color != domain.White {
		t.Fatalf("expected white queen on b8, got %+v", p)
	}
}

func TestCancelledContext(t *testing.T) {
	e := newInitialized(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.ApplyMove(ctx, sq(t, "e2"), sq(t, "e4")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
