package chessdto

import "time"

type ChessGame struct {
	ID        int64
	UserID    *int64
	Result    string
	Finished  bool
	StartedAt time.Time
	EndedAt   *time.Time
	Duration  time.Duration
	MoveCount int
	Moves     []MoveRecord
	Summary   string
}
