package msgcat

import (
	"fmt"

	"github.com/park285/smartchess-session/internal/domain"
)

var drawReasons = map[domain.GameState]string{
	domain.InsufficientMaterial: "Insufficient Material",
	domain.FivefoldRepetition:   "Fivefold Repetition",
	domain.SeventyFiveMoveRule:  "Seventy-Five Move Rule",
	domain.ThreefoldRepetition:  "Threefold Repetition",
	domain.FiftyMoveRule:        "Fifty Move Rule",
	domain.DrawAgreed:           "Agreement",
}

// Results renders Game.Result strings from the result.* templates.
type Results struct {
	cat *Catalog
}

func NewResults(cat *Catalog) *Results {
	if cat == nil {
		cat = Default()
	}
	return &Results{cat: cat}
}

// InProgress is the result stored for a game that has not ended. It is
// fixed and not subject to message overrides.
func (r *Results) InProgress() string {
	return domain.ResultInProgress
}

// Final renders the result for a terminal state. winner is the side that
// delivered mate or whose opponent resigned; it is ignored for draws.
func (r *Results) Final(state domain.GameState, winner domain.Color) (string, error) {
	switch {
	case state == domain.Checkmate:
		return r.cat.Render("result.checkmate", map[string]any{"Winner": winner.String()})
	case state == domain.Resigned:
		return r.cat.Render("result.resigned", map[string]any{"Winner": winner.String()})
	case state == domain.Stalemate:
		return r.cat.Render("result.stalemate", nil)
	case state.Drawn():
		return r.cat.Render("result.draw", map[string]any{"Reason": drawReasons[state]})
	case state.Terminal():
		return r.cat.Render("result.terminal", map[string]any{"State": state.String()})
	default:
		return "", fmt.Errorf("state %s is not terminal", state)
	}
}
