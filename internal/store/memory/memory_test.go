package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/store"
)

func TestUserGameMoveRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := New()

	uid, err := r.InsertUser(ctx, &domain.User{Login: "alice"})
	if err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if _, err := r.InsertUser(ctx, &domain.User{Login: "alice"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	u, err := r.GetUserByLogin(ctx, "alice")
	if err != nil || u == nil || u.ID != uid {
		t.Fatalf("GetUserByLogin = %+v, %v", u, err)
	}

	gid, err := r.InsertGame(ctx, &domain.Game{UserID: &uid, StartTime: time.Now(), Result: domain.ResultInProgress})
	if err != nil {
		t.Fatalf("InsertGame: %v", err)
	}
	g, _ := r.GetGame(ctx, gid)
	g.Result = "mutated"
	again, _ := r.GetGame(ctx, gid)
	if again.Result != domain.ResultInProgress {
		t.Fatalf("GetGame must return a copy")
	}

	for n := 1; n <= 3; n++ {
		if _, err := r.InsertMove(ctx, &domain.Move{GameID: gid, MoveNumber: n, FromSquare: "e2", ToSquare: "e4"}); err != nil {
			t.Fatalf("InsertMove %d: %v", n, err)
		}
	}
	if _, err := r.InsertMove(ctx, &domain.Move{GameID: gid, MoveNumber: 2}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for repeated move number, got %v", err)
	}
	moves, _ := r.GetMovesByGame(ctx, gid)
	if len(moves) != 3 || moves[0].MoveNumber != 1 || moves[2].MoveNumber != 3 {
		t.Fatalf("unexpected moves %+v", moves)
	}

	games, _ := r.GetGamesByUser(ctx, uid)
	if len(games) != 1 {
		t.Fatalf("expected 1 game, got %d", len(games))
	}
}

func TestMissingRecords(t *testing.T) {
	ctx := context.Background()
	r := New()
	if u, err := r.GetUserByID(ctx, 99); u != nil || err != nil {
		t.Fatalf("expected (nil, nil), got %+v, %v", u, err)
	}
	if err := r.UpdateGame(ctx, &domain.Game{ID: 5}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.InsertMove(ctx, &domain.Move{GameID: 5, MoveNumber: 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	missing := int64(42)
	if _, err := r.InsertGame(ctx, &domain.Game{UserID: &missing}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}
