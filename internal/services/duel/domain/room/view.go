package room

import (
	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
)

// PlayerView is one player's state inside a View.
type PlayerView struct {
	ID                string   `json:"playerId"`
	Username          string   `json:"username"`
	Slot              Slot     `json:"slot"`
	Score             int      `json:"score"`
	RemainingAttempts int      `json:"remainingAttempts"`
	Guesses           []string `json:"guesses,omitempty"`
}

// View is an immutable projection of a room for one viewer. The opponent's
// letters are not included; only their score and attempts are shared.
type View struct {
	RoomID   string      `json:"room"`
	Phase    Phase       `json:"phase"`
	Word     string      `json:"word,omitempty"`
	Self     PlayerView  `json:"self"`
	Opponent *PlayerView `json:"opponent,omitempty"`
	Result   Result      `json:"result,omitempty"`
	Reason   Reason      `json:"reason,omitempty"`
}

// View returns the room as seen by viewerID.
func (r *Room) View(viewerID string) (View, error) {
	self := r.player(viewerID)
	if self == nil {
		return View{}, apperrors.WithMetadata(apperrors.CodeUnknownPlayer, "player is not in this room",
			map[string]string{"PlayerID": viewerID})
	}
	view := View{
		RoomID: r.id,
		Phase:  r.phase,
		Word:   r.word,
		Self:   playerView(self, true),
	}
	if opponent := r.opponent(viewerID); opponent != nil {
		opponentView := playerView(opponent, false)
		view.Opponent = &opponentView
	}
	if r.phase == PhaseFinished {
		view.Result = r.outcome.ResultFor(viewerID)
		view.Reason = r.outcome.Reason
	}
	return view, nil
}

func playerView(p *playerState, withGuesses bool) PlayerView {
	view := PlayerView{
		ID:                p.id,
		Username:          p.username,
		Slot:              p.slot,
		Score:             p.score,
		RemainingAttempts: p.remaining,
	}
	if withGuesses {
		view.Guesses = make([]string, 0, len(p.guesses))
		for _, guess := range p.guesses {
			view.Guesses = append(view.Guesses, string(guess.Letter))
		}
	}
	return view
}
