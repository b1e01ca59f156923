package sessionbuilder

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/smartchess-session/internal/config"
	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/session"
)

func testConfig(driver string) *config.AppConfig {
	return &config.AppConfig{
		StoreDriver:   driver,
		CheckpointTTL: time.Hour,
		HistoryLimit:  10,
	}
}

func TestSessionsShareOneGateway(t *testing.T) {
	cfg := testConfig(config.DriverSQLite)
	cfg.SQLitePath = filepath.Join(t.TempDir(), "chess.db")

	deps, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = deps.Close() })

	ctx := context.Background()
	const players = 4
	var wg sync.WaitGroup
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := deps.NewSession(nil)
			if err != nil {
				t.Errorf("NewSession: %v", err)
				return
			}
			user, err := session.ResolveUser(ctx, deps.Gateway, fmt.Sprintf("p%d", i))
			if err != nil {
				t.Errorf("ResolveUser: %v", err)
				return
			}
			if err := s.StartNewGame(ctx, user); err != nil {
				t.Errorf("StartNewGame: %v", err)
				return
			}
			for _, mv := range [][2]string{{"e2", "e4"}, {"e7", "e5"}, {"g1", "f3"}} {
				from, _ := domain.ParseSquare(mv[0])
				to, _ := domain.ParseSquare(mv[1])
				if ok, err := s.MakeMove(ctx, from, to); !ok || err != nil {
					t.Errorf("MakeMove %v: %v, %v", mv, ok, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	// per player: one user, one game, three moves
	if got := deps.Gateway.Serializer().Commits(); got != players*5 {
		t.Fatalf("expected %d commits, got %d", players*5, got)
	}
	list, err := deps.History.ListGames(ctx, "p0")
	if err != nil || len(list) != 1 || list[0].MoveCount != 0 {
		t.Fatalf("ListGames = %+v, %v", list, err)
	}
	g, err := deps.History.Game(ctx, list[0].ID)
	if err != nil || len(g.Moves) != 3 {
		t.Fatalf("Game = %+v, %v", g, err)
	}
}

func TestCheckpointsWiredFromRedisURL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := testConfig(config.DriverMemory)
	cfg.RedisURL = fmt.Sprintf("redis://%s/0", mr.Addr())
	deps, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer deps.Close()
	if deps.Checkpoints == nil {
		t.Fatal("expected checkpoints to be enabled")
	}

	ctx := context.Background()
	s, err := deps.NewSession(nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	user, _ := session.ResolveUser(ctx, deps.Gateway, "alice")
	if err := s.StartNewGame(ctx, user); err != nil {
		t.Fatalf("StartNewGame: %v", err)
	}
	from, _ := domain.ParseSquare("d2")
	to, _ := domain.ParseSquare("d4")
	if ok, err := s.MakeMove(ctx, from, to); !ok || err != nil {
		t.Fatalf("MakeMove: %v, %v", ok, err)
	}
	active, err := deps.Checkpoints.ActiveByUser(ctx, user.ID)
	if err != nil || len(active) != 1 || active[0].SessionID != s.ID() {
		t.Fatalf("ActiveByUser = %+v, %v", active, err)
	}
}

func TestUnknownDriver(t *testing.T) {
	if _, err := New(context.Background(), testConfig("mongo"), nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := New(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}
