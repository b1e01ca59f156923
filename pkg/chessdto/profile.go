package chessdto

import "time"

// PlayerSummary aggregates the recorded games of one user.
type PlayerSummary struct {
	UserID       int64
	Login        string
	GamesPlayed  int
	Finished     int
	InProgress   int
	WhiteWins    int
	BlackWins    int
	Draws        int
	TotalMoves   int
	LastPlayedAt time.Time
}
