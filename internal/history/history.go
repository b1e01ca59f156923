// Package history answers read-side questions about finished and running
// games: per-user listings, single game detail and aggregate summaries.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/gateway"
	"github.com/park285/smartchess-session/internal/msgcat"
	"github.com/park285/smartchess-session/internal/obslog"
	"github.com/park285/smartchess-session/pkg/chessdto"
)

var (
	ErrUserNotFound = errors.New("chess user not found")
	ErrGameNotFound = errors.New("chess game not found")
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type outcome int

const (
	outcomeNone outcome = iota
	outcomeWhite
	outcomeBlack
	outcomeDraw
)

type Service struct {
	store    gateway.Persistence
	cat      *msgcat.Catalog
	limit    int
	outcomes map[string]outcome // rendered result → outcome
	logger   *zap.Logger
}

func New(store gateway.Persistence, cat *msgcat.Catalog, limit int, logger *zap.Logger) *Service {
	if cat == nil {
		cat = msgcat.Default()
	}
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	if logger == nil {
		logger = obslog.L()
	}
	return &Service{
		store:    store,
		cat:      cat,
		limit:    limit,
		outcomes: outcomeTable(msgcat.NewResults(cat)),
		logger:   logger,
	}
}

func outcomeTable(results *msgcat.Results) map[string]outcome {
	out := make(map[string]outcome)
	for _, st := range []domain.GameState{domain.Checkmate, domain.Resigned} {
		if s, err := results.Final(st, domain.White); err == nil {
			out[s] = outcomeWhite
		}
		if s, err := results.Final(st, domain.Black); err == nil {
			out[s] = outcomeBlack
		}
	}
	for st := domain.Stalemate; st <= domain.GameOver; st++ {
		if !st.Drawn() {
			continue
		}
		if s, err := results.Final(st, domain.NoColor); err == nil {
			out[s] = outcomeDraw
		}
	}
	return out
}

// ListGames returns up to the configured limit of games for login, newest first.
func (s *Service) ListGames(ctx context.Context, login string) ([]chessdto.ChessGame, error) {
	user, err := s.lookup(ctx, login)
	if err != nil {
		return nil, err
	}
	games, err := s.store.GetGamesByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list games of %s: %w", user.Login, err)
	}
	sortNewestFirst(games)
	if len(games) > s.limit {
		games = games[:s.limit]
	}
	out := make([]chessdto.ChessGame, 0, len(games))
	for _, g := range games {
		if err := s.countMoves(ctx, g); err != nil {
			return nil, err
		}
		out = append(out, s.gameView(g, nil))
	}
	return out, nil
}

// countMoves fills MoveCount of an unfinished game from its move rows; the
// games row only carries the count once the game has ended.
func (s *Service) countMoves(ctx context.Context, g *domain.Game) error {
	if g.Finished() {
		return nil
	}
	moves, err := s.store.GetMovesByGame(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("count moves of game %d: %w", g.ID, err)
	}
	g.MoveCount = len(moves)
	return nil
}

// Game returns one game with its moves in order.
func (s *Service) Game(ctx context.Context, id int64) (*chessdto.ChessGame, error) {
	g, err := s.store.GetGameByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load game %d: %w", id, err)
	}
	if g == nil {
		return nil, fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	moves, err := s.store.GetMovesByGame(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load moves of game %d: %w", id, err)
	}
	view := s.gameView(g, moves)
	return &view, nil
}

// Summary aggregates every recorded game of login.
func (s *Service) Summary(ctx context.Context, login string) (*chessdto.PlayerSummary, error) {
	user, err := s.lookup(ctx, login)
	if err != nil {
		return nil, err
	}
	games, err := s.store.GetGamesByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", user.Login, err)
	}
	sum := &chessdto.PlayerSummary{UserID: user.ID, Login: user.Login, GamesPlayed: len(games)}
	for _, g := range games {
		if err := s.countMoves(ctx, g); err != nil {
			return nil, err
		}
		sum.TotalMoves += g.MoveCount
		if g.StartTime.After(sum.LastPlayedAt) {
			sum.LastPlayedAt = g.StartTime
		}
		if !g.Finished() {
			sum.InProgress++
			continue
		}
		sum.Finished++
		switch s.outcomes[g.Result] {
		case outcomeWhite:
			sum.WhiteWins++
		case outcomeBlack:
			sum.BlackWins++
		case outcomeDraw:
			sum.Draws++
		}
	}
	return sum, nil
}

// FormatGame renders the one-line listing entry of g.
func (s *Service) FormatGame(g chessdto.ChessGame) string {
	line, err := s.cat.Render("history.game_line", map[string]any{
		"ID":      g.ID,
		"Started": g.StartedAt.Format("2006-01-02 15:04"),
		"Result":  g.Result,
		"Moves":   g.MoveCount,
	})
	if err != nil {
		s.logger.Warn("chess_history_render_failed", zap.Int64("game_id", g.ID), zap.Error(err))
		return fmt.Sprintf("#%d %s", g.ID, g.Result)
	}
	return line
}

// FormatEmpty is shown when login has no games.
func (s *Service) FormatEmpty(login string) string {
	line, err := s.cat.Render("history.empty", map[string]any{"Login": login})
	if err != nil {
		return "No games."
	}
	return line
}

func (s *Service) lookup(ctx context.Context, login string) (*domain.User, error) {
	login = strings.TrimSpace(login)
	user, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", login, err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %q: %w", login, ErrUserNotFound)
	}
	return user, nil
}

func (s *Service) gameView(g *domain.Game, moves []*domain.Move) chessdto.ChessGame {
	view := chessdto.ChessGame{
		ID:        g.ID,
		Result:    g.Result,
		Finished:  g.Finished(),
		StartedAt: g.StartTime,
		MoveCount: g.MoveCount,
	}
	if g.UserID != nil {
		uid := *g.UserID
		view.UserID = &uid
	}
	if g.EndTime != nil {
		end := *g.EndTime
		view.EndedAt = &end
		view.Duration = end.Sub(g.StartTime)
	}
	if moves != nil {
		view.Moves = make([]chessdto.MoveRecord, 0, len(moves))
		for _, m := range moves {
			view.Moves = append(view.Moves, s.moveRecord(m))
		}
		if !view.Finished {
			view.MoveCount = len(moves)
		}
	}
	view.Summary = s.FormatGame(view)
	return view
}

func (s *Service) moveRecord(m *domain.Move) chessdto.MoveRecord {
	rec := chessdto.MoveRecord{
		Number:  m.MoveNumber,
		From:    m.FromSquare,
		To:      m.ToSquare,
		Piece:   m.PieceType,
		Color:   m.Color,
		Capture: m.IsCapture,
	}
	if m.CapturedPiece != nil {
		rec.Captured = *m.CapturedPiece
	}
	text, err := s.cat.Render("history.move_line", rec)
	if err != nil {
		text = fmt.Sprintf("%d. %s-%s", m.MoveNumber, m.FromSquare, m.ToSquare)
	}
	rec.Text = text
	return rec
}

func sortNewestFirst(games []*domain.Game) {
	sort.SliceStable(games, func(i, j int) bool {
		if games[i].StartTime.Equal(games[j].StartTime) {
			return games[i].ID > games[j].ID
		}
		return games[i].StartTime.After(games[j].StartTime)
	})
}
