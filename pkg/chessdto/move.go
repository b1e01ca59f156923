package chessdto

// MoveRecord is one persisted move as shown to a player.
type MoveRecord struct {
	Number   int
	From     string
	To       string
	Piece    string
	Color    string
	Capture  bool
	Captured string
	Text     string
}

// MoveSummary reports the outcome of a single MakeMove call.
type MoveSummary struct {
	Input    string
	Accepted bool
	Move     *MoveRecord
	State    *SessionState
}
