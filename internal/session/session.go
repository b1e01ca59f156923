// Package session runs one chess game at a time against a rule engine and
// records it through the persistence gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/smartchess-session/internal/checkpoint"
	"github.com/park285/smartchess-session/internal/chess"
	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/gateway"
	"github.com/park285/smartchess-session/internal/msgcat"
	"github.com/park285/smartchess-session/internal/obslog"
	"github.com/park285/smartchess-session/internal/store"
	"github.com/park285/smartchess-session/pkg/chessdto"
)

var (
	ErrNoEngine = errors.New("session requires a chess engine")
	ErrNoStore  = errors.New("session requires a persistence gateway")
)

// ResultFormatter renders Game.Result strings.
type ResultFormatter interface {
	InProgress() string
	Final(state domain.GameState, winner domain.Color) (string, error)
}

// Checkpointer stores best-effort snapshots of a live session.
type Checkpointer interface {
	Save(ctx context.Context, rec *checkpoint.Record) error
	Delete(ctx context.Context, sessionID string) error
}

// Stage names the write that failed in a PersistFault.
type Stage string

const (
	StageCreateGame Stage = "create_game"
	StageCreateMove Stage = "create_move"
	StageUpdateGame Stage = "update_game"
)

// PersistFault describes a store failure after the engine already accepted
// the transition. Move is set for StageCreateMove only.
type PersistFault struct {
	Stage Stage
	Move  *domain.Move
	Game  *domain.Game
	Err   error
}

// Config holds optional collaborators; zero fields get defaults in New.
type Config struct {
	Results        ResultFormatter
	Checkpoints    Checkpointer
	Clock          func() time.Time
	OnPersistFault func(ctx context.Context, fault PersistFault)
}

// Session drives one game at a time over its own engine.
type Session struct {
	mu     sync.Mutex
	id     string
	engine chess.Engine
	store  gateway.Persistence
	cfg    Config
	logger *zap.Logger

	snapshot domain.Snapshot
	user     *domain.User
	game     *domain.Game
	// set once the terminal transition has been observed; cleared by a
	// successful UpdateGame
	pendingFinal bool
	finalized    bool
}

// New returns a session with no active game.
func New(engine chess.Engine, store gateway.Persistence, cfg Config, logger *zap.Logger) (*Session, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	if store == nil {
		return nil, ErrNoStore
	}
	if cfg.Results == nil {
		cfg.Results = msgcat.NewResults(nil)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = obslog.L()
	}
	id := uuid.NewString()
	return &Session{
		id:     id,
		engine: engine,
		store:  store,
		cfg:    cfg,
		logger: logger.With(zap.String("session_id", id)),
	}, nil
}

func (s *Session) ID() string { return s.id }

// StartNewGame attaches user, resets the engine and records a new game row.
// A nil user starts a guest game.
func (s *Session) StartNewGame(ctx context.Context, user *domain.User) error {
	if user == nil {
		return s.StartGuestGame(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := *user
	s.user = &u
	if err := s.initialize(ctx); err != nil {
		return err
	}
	created, err := s.store.CreateGame(ctx, s.game)
	if err != nil {
		s.fault(ctx, PersistFault{Stage: StageCreateGame, Game: cloneGame(s.game), Err: err})
		s.game = nil
		return fmt.Errorf("start game for user %d: %w", u.ID, err)
	}
	s.game = created
	s.logger.Info("chess_game_started",
		zap.Int64("game_id", created.ID),
		zap.Int64("user_id", u.ID),
	)
	return nil
}

// StartGuestGame resets the engine without a user. Moves are validated and
// mirrored but never persisted.
func (s *Session) StartGuestGame(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = nil
	if err := s.initialize(ctx); err != nil {
		return err
	}
	s.logger.Info("chess_guest_game_started")
	return nil
}

func (s *Session) initialize(ctx context.Context) error {
	if err := s.engine.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize engine: %w", err)
	}
	s.snapshot = captureSnapshot(s.engine)
	s.pendingFinal = false
	s.finalized = false

	g := &domain.Game{
		StartTime: s.cfg.Clock(),
		Result:    s.cfg.Results.InProgress(),
	}
	if s.user != nil {
		uid := s.user.ID
		g.UserID = &uid
	}
	s.game = g
	return nil
}

// MakeMove applies from→to. It returns false without error for an illegal
// move or when no game is active. The engine keeps the move on any store
// failure: false with an error means the move row was not written, true
// with an error means it was written but the terminal game update failed
// and Finalize should be retried.
func (s *Session) MakeMove(ctx context.Context, from, to domain.Position) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game == nil {
		return false, nil
	}
	before := s.snapshot
	ok, err := s.engine.ApplyMove(ctx, from, to)
	if err != nil {
		return false, fmt.Errorf("apply move %s%s: %w", from, to, err)
	}
	if !ok {
		s.logger.Debug("chess_move_rejected", zap.String("from", from.String()), zap.String("to", to.String()))
		return false, nil
	}
	s.snapshot = captureSnapshot(s.engine)

	move := buildMove(s.game, before.Board, s.snapshot.Board, from, to)
	if s.persisted() {
		stored, err := s.store.CreateMove(ctx, move)
		if err != nil {
			if s.snapshot.State.Terminal() && !s.finalized && !s.pendingFinal {
				// leave the terminal update for Finalize
				s.finish()
			}
			s.fault(ctx, PersistFault{Stage: StageCreateMove, Move: move, Game: cloneGame(s.game), Err: err})
			return false, fmt.Errorf("record move %d of game %d: %w", move.MoveNumber, s.game.ID, err)
		}
		move = stored
	}
	s.game.MoveCount++
	s.logger.Debug("chess_move_applied",
		zap.Int64("game_id", s.game.ID),
		zap.Int("move_number", move.MoveNumber),
		zap.String("from", move.FromSquare),
		zap.String("to", move.ToSquare),
		zap.Bool("capture", move.IsCapture),
	)

	if s.snapshot.State.Terminal() && !s.finalized && !s.pendingFinal {
		s.finish()
		if err := s.commitFinal(ctx); err != nil {
			return true, err
		}
		return true, nil
	}
	s.saveCheckpoint(ctx)
	return true, nil
}

// Finalize re-issues a terminal game update that previously failed. It is a
// no-op when nothing is pending.
func (s *Session) Finalize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pendingFinal {
		return nil
	}
	return s.commitFinal(ctx)
}

// GetGameState asks the engine to classify the position. The mirror is not
// refreshed.
func (s *Session) GetGameState(ctx context.Context) (domain.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.QueryGameState(ctx)
}

func (s *Session) finish() {
	now := s.cfg.Clock()
	state := s.snapshot.State
	winner := s.snapshot.SideToMove.Opponent()
	result, err := s.cfg.Results.Final(state, winner)
	if err != nil {
		s.logger.Warn("chess_result_render_failed", zap.String("state", state.String()), zap.Error(err))
		result = fallbackResult(state, winner)
	}
	s.game.Result = result
	s.game.EndTime = &now
	s.pendingFinal = true
}

func (s *Session) commitFinal(ctx context.Context) error {
	if s.persisted() {
		if err := s.store.UpdateGame(ctx, s.game); err != nil {
			s.fault(ctx, PersistFault{Stage: StageUpdateGame, Game: cloneGame(s.game), Err: err})
			return fmt.Errorf("finalize game %d: %w", s.game.ID, err)
		}
	}
	s.pendingFinal = false
	s.finalized = true
	s.logger.Info("chess_game_finished",
		zap.Int64("game_id", s.game.ID),
		zap.String("result", s.game.Result),
		zap.Int("moves", s.game.MoveCount),
	)
	if s.cfg.Checkpoints != nil {
		if err := s.cfg.Checkpoints.Delete(ctx, s.id); err != nil {
			s.logger.Warn("chess_checkpoint_delete_failed", zap.Error(err))
		}
	}
	return nil
}

func (s *Session) persisted() bool {
	return s.game != nil && s.game.ID > 0
}

func (s *Session) fault(ctx context.Context, f PersistFault) {
	s.logger.Error("chess_persist_failed", zap.String("stage", string(f.Stage)), zap.Error(f.Err))
	if s.cfg.OnPersistFault != nil {
		s.cfg.OnPersistFault(ctx, f)
	}
}

func (s *Session) saveCheckpoint(ctx context.Context) {
	if s.cfg.Checkpoints == nil {
		return
	}
	rec := &checkpoint.Record{
		SessionID:  s.id,
		GameID:     s.game.ID,
		FEN:        s.snapshot.Board.Placement(),
		SideToMove: s.snapshot.SideToMove.String(),
		State:      s.snapshot.State.String(),
		MoveCount:  s.game.MoveCount,
		UpdatedAt:  s.cfg.Clock().UTC(),
	}
	if s.game.UserID != nil {
		uid := *s.game.UserID
		rec.UserID = &uid
	}
	if r, ok := s.engine.(chess.Recorder); ok {
		rec.MovesUCI = r.MovesUCI()
		rec.FEN = r.FEN()
	}
	if err := s.cfg.Checkpoints.Save(ctx, rec); err != nil {
		s.logger.Warn("chess_checkpoint_save_failed", zap.Error(err))
	}
}

// Snapshot returns a copy of the mirrored engine state.
func (s *Session) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *Session) Board() domain.Board { return s.Snapshot().Board }
func (s *Session) SideToMove() domain.Color { return s.Snapshot().SideToMove }
func (s *Session) State() domain.GameState { return s.Snapshot().State }

// Game returns a copy of the current game, or nil before the first start.
func (s *Session) Game() *domain.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneGame(s.game)
}

func (s *Session) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// View renders the session for callers outside the core.
func (s *Session) View() *chessdto.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := &chessdto.SessionState{
		SessionUUID: s.id,
		Guest:       s.user == nil,
		Placement:   s.snapshot.Board.Placement(),
		SideToMove:  s.snapshot.SideToMove.String(),
		State:       s.snapshot.State.String(),
	}
	if r, ok := s.engine.(chess.Recorder); ok && s.game != nil {
		v.MovesUCI = r.MovesUCI()
		v.FEN = r.FEN()
	}
	if s.game != nil {
		v.GameID = s.game.ID
		v.Result = s.game.Result
		v.MoveCount = s.game.MoveCount
		v.Finished = s.game.EndTime != nil
		v.StartedAt = s.game.StartTime
		if s.game.UserID != nil {
			uid := *s.game.UserID
			v.UserID = &uid
		}
	}
	return v
}

func captureSnapshot(engine chess.Engine) domain.Snapshot {
	return domain.Snapshot{
		Board:      engine.Board(),
		SideToMove: engine.SideToMove(),
		State:      engine.State(),
	}
}

// buildMove derives the move record. The moved piece is read from the board
// after the move; the captured piece from the board before it, including the
// pawn removed by en passant.
func buildMove(game *domain.Game, before, after domain.Board, from, to domain.Position) *domain.Move {
	moved := after.At(to)
	captured := before.At(to)
	if captured.Empty() && before.At(from).Kind == domain.Pawn && from.X != to.X {
		captured = domain.Piece{Kind: domain.Pawn, Color: before.At(from).Color.Opponent()}
	}
	m := &domain.Move{
		GameID:     game.ID,
		MoveNumber: game.MoveCount + 1,
		FromSquare: from.String(),
		ToSquare:   to.String(),
		PieceType:  moved.Kind.String(),
		Color:      moved.Color.String(),
		IsCapture:  !captured.Empty(),
	}
	if m.IsCapture {
		kind := captured.Kind.String()
		m.CapturedPiece = &kind
	}
	return m
}

func fallbackResult(state domain.GameState, winner domain.Color) string {
	switch {
	case state == domain.Checkmate:
		return fmt.Sprintf("Checkmate - %s wins", winner)
	case state == domain.Stalemate:
		return "Stalemate - Draw"
	default:
		return "Game over - " + state.String()
	}
}

func cloneGame(g *domain.Game) *domain.Game {
	if g == nil {
		return nil
	}
	out := *g
	if g.UserID != nil {
		uid := *g.UserID
		out.UserID = &uid
	}
	if g.EndTime != nil {
		end := *g.EndTime
		out.EndTime = &end
	}
	return &out
}

// ResolveUser returns the user with login, creating it when missing.
func ResolveUser(ctx context.Context, p gateway.Persistence, login string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	u, err := p.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	u, err = p.CreateUser(ctx, &domain.User{Login: login})
	if errors.Is(err, store.ErrDuplicate) {
		return p.GetUserByLogin(ctx, login)
	}
	return u, err
}
