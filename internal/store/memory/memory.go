package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/store"
)

// Repository keeps users, games and moves in process memory. Used when no
// database is configured and in tests.
type Repository struct {
	mu sync.RWMutex

	nextUserID int64
	nextGameID int64
	nextMoveID int64

	users       map[int64]*domain.User
	usersBy     map[string]int64 // login -> id
	games       map[int64]*domain.Game
	moves       map[int64][]*domain.Move // gameID -> moves in insert order
	moveNumbers map[string]struct{}      // gameID|number
}

func New() *Repository {
	return &Repository{
		users:       make(map[int64]*domain.User),
		usersBy:     make(map[string]int64),
		games:       make(map[int64]*domain.Game),
		moves:       make(map[int64][]*domain.Move),
		moveNumbers: make(map[string]struct{}),
	}
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	copy := *u
	return &copy, nil
}

func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.usersBy[strings.TrimSpace(login)]
	if !ok {
		return nil, nil
	}
	copy := *r.users[id]
	return &copy, nil
}

func (r *Repository) InsertUser(ctx context.Context, user *domain.User) (int64, error) {
	if user == nil {
		return 0, store.ErrInvalidRecord
	}
	login := strings.TrimSpace(user.Login)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.usersBy[login]; exists {
		return 0, fmt.Errorf("insert user %q: %w", login, store.ErrDuplicate)
	}
	r.nextUserID++
	id := r.nextUserID
	r.users[id] = &domain.User{ID: id, Login: login}
	r.usersBy[login] = id
	return id, nil
}

func (r *Repository) InsertGame(ctx context.Context, game *domain.Game) (int64, error) {
	if game == nil {
		return 0, store.ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if game.UserID != nil {
		if _, ok := r.users[*game.UserID]; !ok {
			return 0, fmt.Errorf("insert game: user %d: %w", *game.UserID, store.ErrNotFound)
		}
	}
	r.nextGameID++
	id := r.nextGameID
	copy := cloneGame(game)
	copy.ID = id
	r.games[id] = copy
	return id, nil
}

func (r *Repository) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	if !ok {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (r *Repository) GetGamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Game, 0)
	for _, g := range r.games {
		if g.UserID != nil && *g.UserID == userID {
			out = append(out, cloneGame(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repository) UpdateGame(ctx context.Context, game *domain.Game) error {
	if game == nil {
		return store.ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[game.ID]; !ok {
		return fmt.Errorf("update game %d: %w", game.ID, store.ErrNotFound)
	}
	r.games[game.ID] = cloneGame(game)
	return nil
}

func (r *Repository) InsertMove(ctx context.Context, move *domain.Move) (int64, error) {
	if move == nil {
		return 0, store.ErrInvalidRecord
	}
	key := fmt.Sprintf("%d|%d", move.GameID, move.MoveNumber)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[move.GameID]; !ok {
		return 0, fmt.Errorf("insert move: game %d: %w", move.GameID, store.ErrNotFound)
	}
	if _, dup := r.moveNumbers[key]; dup {
		return 0, fmt.Errorf("insert move %d of game %d: %w", move.MoveNumber, move.GameID, store.ErrDuplicate)
	}
	r.nextMoveID++
	copy := cloneMove(move)
	copy.ID = r.nextMoveID
	r.moves[move.GameID] = append(r.moves[move.GameID], copy)
	r.moveNumbers[key] = struct{}{}
	return copy.ID, nil
}

func (r *Repository) GetMovesByGame(ctx context.Context, gameID int64) ([]*domain.Move, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.moves[gameID]
	out := make([]*domain.Move, 0, len(list))
	for _, m := range list {
		out = append(out, cloneMove(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MoveNumber < out[j].MoveNumber })
	return out, nil
}

func (r *Repository) Close() error { return nil }

func cloneGame(g *domain.Game) *domain.Game {
	copy := *g
	if g.UserID != nil {
		uid := *g.UserID
		copy.UserID = &uid
	}
	if g.EndTime != nil {
		end := *g.EndTime
		copy.EndTime = &end
	}
	return &copy
}

func cloneMove(m *domain.Move) *domain.Move {
	copy := *m
	if m.CapturedPiece != nil {
		captured := *m.CapturedPiece
		copy.CapturedPiece = &captured
	}
	return &copy
}

var _ store.Repository = (*Repository)(nil)
