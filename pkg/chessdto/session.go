package chessdto

import "time"

// SessionState is the upward-facing view of a live game session.
type SessionState struct {
	SessionUUID string
	GameID      int64
	UserID      *int64
	Guest       bool
	Placement   string
	FEN         string
	MovesUCI    []string
	SideToMove  string
	State       string
	Result      string
	MoveCount   int
	Finished    bool
	StartedAt   time.Time
}
