// Package checkpoint keeps an expiring snapshot of live sessions in Redis so
// that an interrupted game can be inspected or replayed.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

// Record is the stored view of one session.
type Record struct {
	SessionID  string    `json:"session_id"`
	GameID     int64     `json:"game_id,omitempty"`
	UserID     *int64    `json:"user_id,omitempty"`
	MovesUCI   []string  `json:"moves_uci"`
	FEN        string    `json:"fen"`
	SideToMove string    `json:"side_to_move"`
	State      string    `json:"state"`
	MoveCount  int       `json:"move_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore dials redisURL (redis:// or rediss://) and pings it.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for checkpoints")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStoreFromClient(rdb, ttl), nil
}

func NewRedisStoreFromClient(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *RedisStore) keySession(id string) string { return "chess:session:" + strings.TrimSpace(id) }
func (s *RedisStore) keyUserIdx(userID int64) string {
	return "chess:index:user:" + strconv.FormatInt(userID, 10)
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.SessionID) == "" {
		return fmt.Errorf("checkpoint without session id")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.keySession(rec.SessionID), raw, s.ttl)
	if rec.UserID != nil {
		idx := s.keyUserIdx(*rec.UserID)
		pipe.SAdd(ctx, idx, rec.SessionID)
		pipe.Expire(ctx, idx, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns (nil, nil) when no checkpoint exists or it has expired.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, s.keySession(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", sessionID, err)
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	rec, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, s.keySession(sessionID)).Err(); err != nil {
		return err
	}
	if rec != nil && rec.UserID != nil {
		return s.rdb.SRem(ctx, s.keyUserIdx(*rec.UserID), sessionID).Err()
	}
	return nil
}

// ActiveByUser lists the live checkpoints of a user, ordered as Redis returns
// them. Index entries whose record has expired are pruned.
func (s *RedisStore) ActiveByUser(ctx context.Context, userID int64) ([]*Record, error) {
	idx := s.keyUserIdx(userID)
	ids, err := s.rdb.SMembers(ctx, idx).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			_ = s.rdb.SRem(ctx, idx, id).Err()
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
