// Package sqlite provides a SQLite-backed store.Repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/store"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Schema creates the users, games and moves tables.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	login TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS games (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NULL REFERENCES users(id),
	start_time INTEGER NOT NULL,
	end_time INTEGER NULL,
	result TEXT NOT NULL,
	move_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS moves (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	game_id INTEGER NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	move_number INTEGER NOT NULL,
	from_square TEXT NOT NULL,
	to_square TEXT NOT NULL,
	piece_type TEXT NOT NULL,
	color TEXT NOT NULL,
	is_capture INTEGER NOT NULL DEFAULT 0,
	captured_piece TEXT NULL,
	UNIQUE(game_id, move_number)
);

CREATE INDEX IF NOT EXISTS idx_games_user_id ON games(user_id);
CREATE INDEX IF NOT EXISTS idx_moves_game_id ON moves(game_id);
`

// Store persists users, games and moves in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) a SQLite database and applies Schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(Schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id, login FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	var u domain.User
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id, login FROM users WHERE login = ?`, strings.TrimSpace(login)).Scan(&u.ID, &u.Login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user by login: %w", err)
	}
	return &u, nil
}

func (s *Store) InsertUser(ctx context.Context, user *domain.User) (int64, error) {
	if user == nil {
		return 0, store.ErrInvalidRecord
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO users (login) VALUES (?)`, strings.TrimSpace(user.Login))
		if err != nil {
			return mapWriteErr("insert user", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Store) InsertGame(ctx context.Context, game *domain.Game) (int64, error) {
	if game == nil {
		return 0, store.ErrInvalidRecord
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO games (user_id, start_time, end_time, result, move_count) VALUES (?, ?, ?, ?, ?)`,
			nullableID(game.UserID),
			toMillis(game.StartTime),
			nullableMillis(game.EndTime),
			game.Result,
			game.MoveCount,
		)
		if err != nil {
			return mapWriteErr("insert game", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

const selectGame = `SELECT id, user_id, start_time, end_time, result, move_count FROM games`

func (s *Store) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	g, err := scanGame(s.sqlDB.QueryRowContext(ctx, selectGame+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

func (s *Store) GetGamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error) {
	rows, err := s.sqlDB.QueryContext(ctx, selectGame+` WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	games := make([]*domain.Game, 0)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

func (s *Store) UpdateGame(ctx context.Context, game *domain.Game) error {
	if game == nil {
		return store.ErrInvalidRecord
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE games SET end_time = ?, result = ?, move_count = ? WHERE id = ?`,
			nullableMillis(game.EndTime),
			game.Result,
			game.MoveCount,
			game.ID,
		)
		if err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update game: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("update game %d: %w", game.ID, store.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) InsertMove(ctx context.Context, move *domain.Move) (int64, error) {
	if move == nil {
		return 0, store.ErrInvalidRecord
	}
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO moves (
			   game_id,
			   move_number,
			   from_square,
			   to_square,
			   piece_type,
			   color,
			   is_capture,
			   captured_piece
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			move.GameID,
			move.MoveNumber,
			move.FromSquare,
			move.ToSquare,
			move.PieceType,
			move.Color,
			move.IsCapture,
			nullableString(move.CapturedPiece),
		)
		if err != nil {
			return mapWriteErr("insert move", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (s *Store) GetMovesByGame(ctx context.Context, gameID int64) ([]*domain.Move, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, game_id, move_number, from_square, to_square, piece_type, color, is_capture, captured_piece
		 FROM moves WHERE game_id = ? ORDER BY move_number`, gameID)
	if err != nil {
		return nil, fmt.Errorf("select moves: %w", err)
	}
	defer rows.Close()

	moves := make([]*domain.Move, 0)
	for rows.Next() {
		var (
			m        domain.Move
			captured sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.GameID, &m.MoveNumber, &m.FromSquare, &m.ToSquare,
			&m.PieceType, &m.Color, &m.IsCapture, &captured); err != nil {
			return nil, fmt.Errorf("scan move: %w", err)
		}
		if captured.Valid {
			v := captured.String
			m.CapturedPiece = &v
		}
		moves = append(moves, &m)
	}
	return moves, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*domain.Game, error) {
	var (
		g       domain.Game
		userID  sql.NullInt64
		start   int64
		endTime sql.NullInt64
	)
	if err := row.Scan(&g.ID, &userID, &start, &endTime, &g.Result, &g.MoveCount); err != nil {
		return nil, err
	}
	g.StartTime = fromMillis(start)
	if userID.Valid {
		v := userID.Int64
		g.UserID = &v
	}
	if endTime.Valid {
		v := fromMillis(endTime.Int64)
		g.EndTime = &v
	}
	return &g, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapWriteErr(op string, err error) error {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %w", op, store.ErrDuplicate)
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w", op, store.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ store.Repository = (*Store)(nil)
