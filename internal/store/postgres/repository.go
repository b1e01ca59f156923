// Package postgres implements store.Repository on PostgreSQL via lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/park285/smartchess-session/internal/domain"
	"github.com/park285/smartchess-session/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	login TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS games (
	id BIGSERIAL PRIMARY KEY,
	user_id BIGINT NULL REFERENCES users(id),
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NULL,
	result TEXT NOT NULL,
	move_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS moves (
	id BIGSERIAL PRIMARY KEY,
	game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
	move_number INTEGER NOT NULL,
	from_square TEXT NOT NULL,
	to_square TEXT NOT NULL,
	piece_type TEXT NOT NULL,
	color TEXT NOT NULL,
	is_capture BOOLEAN NOT NULL DEFAULT FALSE,
	captured_piece TEXT NULL,
	UNIQUE (game_id, move_number)
);

CREATE INDEX IF NOT EXISTS idx_games_user_id ON games(user_id);
CREATE INDEX IF NOT EXISTS idx_moves_game_id ON moves(game_id);
`

// Options tunes the connection pool.
type Options struct {
	MaxOpenConns int
}

type Repository struct {
	db *sql.DB
}

// Open connects to databaseURL, pings it and ensures the schema exists.
func Open(ctx context.Context, databaseURL string, opts Options) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	maxOpen := opts.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 16
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	r := &Repository{db: db}
	if err := r.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

// NewRepository wraps an existing handle. The caller owns schema setup.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
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

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `SELECT id, login FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `SELECT id, login FROM users WHERE login = $1`, strings.TrimSpace(login)).Scan(&u.ID, &u.Login)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user by login: %w", err)
	}
	return &u, nil
}

func (r *Repository) InsertUser(ctx context.Context, user *domain.User) (int64, error) {
	if user == nil {
		return 0, store.ErrInvalidRecord
	}
	var id int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO users (login) VALUES ($1) RETURNING id`,
			strings.TrimSpace(user.Login),
		).Scan(&id)
		return mapWriteErr("insert user", err)
	})
	return id, err
}

func (r *Repository) InsertGame(ctx context.Context, game *domain.Game) (int64, error) {
	if game == nil {
		return 0, store.ErrInvalidRecord
	}
	const query = `
		INSERT INTO games (
			user_id,
			start_time,
			end_time,
			result,
			move_count
		)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	var id int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			nullableID(game.UserID),
			game.StartTime.UTC(),
			nullableTime(game.EndTime),
			game.Result,
			game.MoveCount,
		).Scan(&id)
		return mapWriteErr("insert game", err)
	})
	return id, err
}

const selectGame = `
		SELECT
			id,
			user_id,
			start_time,
			end_time,
			result,
			move_count
		FROM games`

func (r *Repository) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, selectGame+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select game: %w", err)
	}
	return g, nil
}

func (r *Repository) GetGamesByUser(ctx context.Context, userID int64) ([]*domain.Game, error) {
	rows, err := r.db.QueryContext(ctx, selectGame+` WHERE user_id = $1 ORDER BY id`, userID)
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

func (r *Repository) UpdateGame(ctx context.Context, game *domain.Game) error {
	if game == nil {
		return store.ErrInvalidRecord
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE games SET end_time = $1, result = $2, move_count = $3 WHERE id = $4`,
			nullableTime(game.EndTime),
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

func (r *Repository) InsertMove(ctx context.Context, move *domain.Move) (int64, error) {
	if move == nil {
		return 0, store.ErrInvalidRecord
	}
	const query = `
		INSERT INTO moves (
			game_id,
			move_number,
			from_square,
			to_square,
			piece_type,
			color,
			is_capture,
			captured_piece
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			move.GameID,
			move.MoveNumber,
			move.FromSquare,
			move.ToSquare,
			move.PieceType,
			move.Color,
			move.IsCapture,
			nullableString(move.CapturedPiece),
		).Scan(&id)
		return mapWriteErr("insert move", err)
	})
	return id, err
}

func (r *Repository) GetMovesByGame(ctx context.Context, gameID int64) ([]*domain.Move, error) {
	const query = `
		SELECT
			id,
			game_id,
			move_number,
			from_square,
			to_square,
			piece_type,
			color,
			is_capture,
			captured_piece
		FROM moves
		WHERE game_id = $1
		ORDER BY move_number`

	rows, err := r.db.QueryContext(ctx, query, gameID)
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
		if err := rows.Scan(
			&m.ID,
			&m.GameID,
			&m.MoveNumber,
			&m.FromSquare,
			&m.ToSquare,
			&m.PieceType,
			&m.Color,
			&m.IsCapture,
			&captured,
		); err != nil {
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

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (*domain.Game, error) {
	var (
		g       domain.Game
		userID  sql.NullInt64
		endTime sql.NullTime
	)
	if err := row.Scan(&g.ID, &userID, &g.StartTime, &endTime, &g.Result, &g.MoveCount); err != nil {
		return nil, err
	}
	g.StartTime = g.StartTime.UTC()
	if userID.Valid {
		v := userID.Int64
		g.UserID = &v
	}
	if endTime.Valid {
		v := endTime.Time.UTC()
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

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func mapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, store.ErrDuplicate)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, store.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ store.Repository = (*Repository)(nil)
