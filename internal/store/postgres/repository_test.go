package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"

	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/store"
)

func TestMapWriteErr(t *testing.T) {
	if err := mapWriteErr("insert", nil); err != nil {
		t.Fatalf("nil error must stay nil, got %v", err)
	}
	dup := &pq.Error{Code: pqUniqueViolation}
	if err := mapWriteErr("insert move", dup); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	fk := &pq.Error{Code: pqForeignKeyViolation}
	if err := mapWriteErr("insert move", fmt.Errorf("wrapped: %w", fk)); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	other := errors.New("connection reset")
	if err := mapWriteErr("insert move", other); !errors.Is(err, other) {
		t.Fatalf("expected original error to be wrapped, got %v", err)
	}
}

func TestOpenRequiresURL(t *testing.T) {
	if _, err := Open(context.Background(), "", Options{}); err == nil {
		t.Fatal("expected error for empty DATABASE_URL")
	}
}

// Runs against a live server only when CHESS_TEST_DATABASE_URL is set.
func TestRepositoryAgainstPostgres(t *testing.T) {
	url := os.Getenv("CHESS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("CHESS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	r, err := Open(ctx, url, Options{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	login := fmt.Sprintf("pg-test-%d", time.Now().UnixNano())
	uid, err := r.InsertUser(ctx, &domain.User{Login: login})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := r.InsertUser(ctx, &domain.User{Login: login}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	gid, err := r.InsertGame(ctx, &domain.Game{UserID: &uid, StartTime: time.Now(), Result: domain.ResultInProgress})
	if err != nil {
		t.Fatalf("insert game: %v", err)
	}
	if _, err := r.InsertMove(ctx, &domain.Move{GameID: gid, MoveNumber: 1, FromSquare: "e2", ToSquare: "e4", PieceType: "Pawn", Color: "White"}); err != nil {
		t.Fatalf("insert move: %v", err)
	}
	if _, err := r.InsertMove(ctx, &domain.Move{GameID: gid, MoveNumber: 1, FromSquare: "d2", ToSquare: "d4", PieceType: "Pawn", Color: "White"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	end := time.Now()
	if err := r.UpdateGame(ctx, &domain.Game{ID: gid, EndTime: &end, Result: "Stalemate - Draw", MoveCount: 1}); err != nil {
		t.Fatalf("update game: %v", err)
	}
	g, err := r.GetGame(ctx, gid)
	if err != nil || g == nil || g.EndTime == nil || g.MoveCount != 1 {
		t.Fatalf("GetGame = %+v, %v", g, err)
	}
	moves, err := r.GetMovesByGame(ctx, gid)
	if err != nil || len(moves) != 1 || moves[0].IsCapture {
		t.Fatalf("GetMovesByGame = %+v, %v", moves, err)
	}
}
