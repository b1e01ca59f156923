package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	appcfg "github.com/park285/smartchess-session/internal/config"
	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/obslog"
	"github.com/park285/smartchess-session/internal/session"
	"github.com/park285/smartchess-session/internal/sessionbuilder"
	"github.com/park285/smartchess-session/pkg/chessdto"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "chess-session",
		Usage:  "play and inspect recorded chess games",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:      "play",
				Usage:     "start a game and apply moves in order",
				ArgsUsage: "MOVE... (e2e4 or e2-e4)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "login", Usage: "player login; created on first use"},
					&cli.BoolFlag{Name: "guest", Usage: "play without recording the game"},
				},
				Action: playAction,
			},
			{
				Name:  "history",
				Usage: "list recorded games of a player",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "login", Usage: "player login", Required: true},
				},
				Action: historyAction,
			},
			{
				Name:      "show",
				Usage:     "print one game with its moves",
				ArgsUsage: "GAME_ID",
				Action:    showAction,
			},
			{
				Name:  "sessions",
				Usage: "list live session checkpoints of a user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user-id", Usage: "numeric user id", Required: true},
				},
				Action: sessionsAction,
			},
		},
	}
}

func openDeps(ctx context.Context) (*sessionbuilder.Deps, error) {
	cfg, err := appcfg.Load()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return sessionbuilder.New(ctx, cfg, obslog.L())
}

func playAction(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer
	login := strings.TrimSpace(cmd.String("login"))
	guest := cmd.Bool("guest")
	if guest == (login != "") {
		return errors.New("exactly one of --login or --guest is required")
	}

	deps, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	s, err := deps.NewSession(func(_ context.Context, f session.PersistFault) {
		obslog.L().Error("chess_cli_persist_fault", zap.String("stage", string(f.Stage)), zap.Error(f.Err))
	})
	if err != nil {
		return err
	}
	if guest {
		err = s.StartGuestGame(ctx)
	} else {
		var user *domain.User
		user, err = session.ResolveUser(ctx, deps.Gateway, login)
		if err == nil {
			err = s.StartNewGame(ctx, user)
		}
	}
	if err != nil {
		return err
	}

	for _, raw := range cmd.Args().Slice() {
		summary, err := applyMove(ctx, s, raw)
		if err != nil {
			if ferr := s.Finalize(ctx); ferr != nil {
				return errors.Join(err, ferr)
			}
			return err
		}
		printSummary(out, summary)
		if summary.State.Finished {
			break
		}
	}

	view := s.View()
	fmt.Fprintf(out, "board: %s\n", view.Placement)
	fmt.Fprintf(out, "to move: %s, state: %s\n", view.SideToMove, view.State)
	if view.GameID > 0 {
		fmt.Fprintf(out, "game #%d: %s (%d moves)\n", view.GameID, view.Result, view.MoveCount)
	} else {
		fmt.Fprintf(out, "guest game: %s (%d moves)\n", view.Result, view.MoveCount)
	}
	return nil
}

func applyMove(ctx context.Context, s *session.Session, raw string) (*chessdto.MoveSummary, error) {
	from, to, err := parseMove(raw)
	if err != nil {
		return &chessdto.MoveSummary{Input: raw, State: s.View()}, nil
	}
	ok, err := s.MakeMove(ctx, from, to)
	if err != nil {
		return nil, err
	}
	summary := &chessdto.MoveSummary{Input: raw, Accepted: ok, State: s.View()}
	if ok {
		summary.Move = &chessdto.MoveRecord{
			Number: summary.State.MoveCount,
			From:   from.String(),
			To:     to.String(),
		}
	}
	return summary, nil
}

func printSummary(out io.Writer, m *chessdto.MoveSummary) {
	if !m.Accepted {
		fmt.Fprintf(out, "%s: rejected\n", m.Input)
		return
	}
	fmt.Fprintf(out, "%d. %s-%s\n", m.Move.Number, m.Move.From, m.Move.To)
}

// parseMove accepts "e2e4" and "e2-e4".
func parseMove(raw string) (domain.Position, domain.Position, error) {
	s := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "-", ""))
	if len(s) != 4 {
		return domain.Position{}, domain.Position{}, fmt.Errorf("bad move %q", raw)
	}
	from, err := domain.ParseSquare(s[:2])
	if err != nil {
		return domain.Position{}, domain.Position{}, err
	}
	to, err := domain.ParseSquare(s[2:])
	if err != nil {
		return domain.Position{}, domain.Position{}, err
	}
	return from, to, nil
}

func historyAction(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer
	deps, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	login := cmd.String("login")
	games, err := deps.History.ListGames(ctx, login)
	if err != nil {
		return err
	}
	if len(games) == 0 {
		fmt.Fprintln(out, deps.History.FormatEmpty(login))
		return nil
	}
	for _, g := range games {
		fmt.Fprintln(out, g.Summary)
	}
	sum, err := deps.History.Summary(ctx, login)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "played %d, white wins %d, black wins %d, draws %d, unfinished %d\n",
		sum.GamesPlayed, sum.WhiteWins, sum.BlackWins, sum.Draws, sum.InProgress)
	return nil
}

func showAction(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer
	id, err := strconv.ParseInt(strings.TrimSpace(cmd.Args().First()), 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("GAME_ID must be a positive integer")
	}
	deps, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	g, err := deps.History.Game(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, g.Summary)
	for _, m := range g.Moves {
		fmt.Fprintln(out, "  "+m.Text)
	}
	return nil
}

func sessionsAction(ctx context.Context, cmd *cli.Command) error {
	out := cmd.Root().Writer
	userID, err := strconv.ParseInt(strings.TrimSpace(cmd.String("user-id")), 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("--user-id must be a positive integer")
	}
	deps, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()
	if deps.Checkpoints == nil {
		return errors.New("REDIS_URL is required to list sessions")
	}

	recs, err := deps.Checkpoints.ActiveByUser(ctx, userID)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(out, "no live sessions")
		return nil
	}
	for _, r := range recs {
		fmt.Fprintf(out, "%s game #%d, %d moves, %s to move, updated %s\n",
			r.SessionID, r.GameID, r.MoveCount, r.SideToMove, r.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
