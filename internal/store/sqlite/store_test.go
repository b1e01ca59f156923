package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "chess.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestGameLifecycle(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	uid, err := s.InsertUser(ctx, &domain.User{Login: "alice"})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := s.InsertUser(ctx, &domain.User{Login: "alice"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	u, err := s.GetUserByID(ctx, uid)
	if err != nil || u == nil || u.Login != "alice" {
		t.Fatalf("GetUserByID = %+v, %v", u, err)
	}

	start := time.Date(2026, 3, 1, 12, 0, 0, 123_000_000, time.UTC)
	gid, err := s.InsertGame(ctx, &domain.Game{UserID: &uid, StartTime: start, Result: domain.ResultInProgress})
	if err != nil {
		t.Fatalf("insert game: %v", err)
	}

	captured := "Pawn"
	moves := []*domain.Move{
		{GameID: gid, MoveNumber: 1, FromSquare: "e2", ToSquare: "e4", PieceType: "Pawn", Color: "White"},
		{GameID: gid, MoveNumber: 2, FromSquare: "d7", ToSquare: "d5", PieceType: "Pawn", Color: "Black"},
		{GameID: gid, MoveNumber: 3, FromSquare: "e4", ToSquare: "d5", PieceType: "Pawn", Color: "White", IsCapture: true, CapturedPiece: &captured},
	}
	for _, m := range moves {
		if _, err := s.InsertMove(ctx, m); err != nil {
			t.Fatalf("insert move %d: %v", m.MoveNumber, err)
		}
	}
	if _, err := s.InsertMove(ctx, &domain.Move{GameID: gid, MoveNumber: 3, FromSquare: "a2", ToSquare: "a3", PieceType: "Pawn", Color: "White"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated move number, got %v", err)
	}

	got, err := s.GetMovesByGame(ctx, gid)
	if err != nil {
		t.Fatalf("get moves: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 moves, got %d", len(got))
	}
	if got[0].IsCapture || got[0].CapturedPiece != nil {
		t.Fatalf("first move must not be a capture: %+v", got[0])
	}
	if !got[2].IsCapture || got[2].CapturedPiece == nil || *got[2].CapturedPiece != "Pawn" {
		t.Fatalf("third move must capture a pawn: %+v", got[2])
	}

	end := start.Add(10 * time.Minute)
	if err := s.UpdateGame(ctx, &domain.Game{ID: gid, UserID: &uid, StartTime: start, EndTime: &end, Result: "Checkmate - White wins", MoveCount: 3}); err != nil {
		t.Fatalf("update game: %v", err)
	}
	g, err := s.GetGame(ctx, gid)
	if err != nil || g == nil {
		t.Fatalf("GetGame = %+v, %v", g, err)
	}
	if !g.StartTime.Equal(start) || g.EndTime == nil || !g.EndTime.Equal(end) {
		t.Fatalf("timestamps not preserved: %+v", g)
	}
	if g.MoveCount != 3 || g.Result != "Checkmate - White wins" {
		t.Fatalf("unexpected game %+v", g)
	}

	games, err := s.GetGamesByUser(ctx, uid)
	if err != nil || len(games) != 1 {
		t.Fatalf("GetGamesByUser = %v, %v", games, err)
	}
}

func TestMissingRows(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if g, err := s.GetGame(ctx, 404); g != nil || err != nil {
		t.Fatalf("expected (nil, nil), got %+v, %v", g, err)
	}
	if u, err := s.GetUserByLogin(ctx, "nobody"); u != nil || err != nil {
		t.Fatalf("expected (nil, nil), got %+v, %v", u, err)
	}
	if err := s.UpdateGame(ctx, &domain.Game{ID: 404, Result: "x"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.InsertMove(ctx, &domain.Move{GameID: 404, MoveNumber: 1, FromSquare: "e2", ToSquare: "e4", PieceType: "Pawn", Color: "White"}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown game, got %v", err)
	}
}

func TestGuestGameHasNoUser(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	gid, err := s.InsertGame(ctx, &domain.Game{StartTime: time.Now(), Result: domain.ResultInProgress})
	if err != nil {
		t.Fatalf("insert game: %v", err)
	}
	g, err := s.GetGame(ctx, gid)
	if err != nil || g == nil || g.UserID != nil || g.EndTime != nil {
		t.Fatalf("unexpected guest game %+v, %v", g, err)
	}
}

func TestCancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.InsertUser(ctx, &domain.User{Login: "bob"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
