package room

import (
	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
)

// OutcomeKind is how a finished room ended.
type OutcomeKind string

const (
	OutcomeNone OutcomeKind = ""
	OutcomeWin  OutcomeKind = "win"
	OutcomeDraw OutcomeKind = "draw"
)

// Reason is why a room finished.
type Reason string

const (
	ReasonCompleted Reason = "completed"
	ReasonExhausted Reason = "exhausted"
	ReasonForfeit   Reason = "forfeit"
	ReasonAbandoned Reason = "abandoned"
)

// Result is an outcome seen from one player.
type Result string

const (
	ResultNone Result = ""
	ResultWin  Result = "win"
	ResultLose Result = "lose"
	ResultDraw Result = "draw"
)

// Outcome is the termination result of a room.
type Outcome struct {
	Kind     OutcomeKind
	WinnerID string
	Reason   Reason
}

// ResultFor resolves the outcome from playerID's perspective.
func (o Outcome) ResultFor(playerID string) Result {
	switch o.Kind {
	case OutcomeDraw:
		return ResultDraw
	case OutcomeWin:
		if o.WinnerID == playerID {
			return ResultWin
		}
		return ResultLose
	default:
		return ResultNone
	}
}

// Forfeit finishes an active room with the opponent of loserID as winner.
func (r *Room) Forfeit(loserID string) error {
	if r.phase != PhaseActive {
		return apperrors.New(apperrors.CodeRoomNotActive, "only an active room can be forfeited")
	}
	winner := r.opponent(loserID)
	if winner == nil {
		return apperrors.WithMetadata(apperrors.CodeUnknownPlayer, "player is not in this room",
			map[string]string{"PlayerID": loserID})
	}
	r.finish(Outcome{Kind: OutcomeWin, WinnerID: winner.id, Reason: ReasonForfeit})
	return nil
}

// Abandon finishes a room nobody is left to play. A waiting room ends with no
// winner; an active room ends in a draw. Finished rooms are left unchanged.
func (r *Room) Abandon() {
	switch r.phase {
	case PhaseWaiting:
		r.finish(Outcome{Kind: OutcomeNone, Reason: ReasonAbandoned})
	case PhaseActive:
		r.finish(Outcome{Kind: OutcomeDraw, Reason: ReasonAbandoned})
	}
}

// evaluate checks both players once and finishes the room if either is
// terminal. Both terminal in the same step is a draw whatever the reasons.
func (r *Room) evaluate() {
	a, b := r.players[0], r.players[1]
	aTerminal, bTerminal := r.terminal(a), r.terminal(b)

	switch {
	case aTerminal && bTerminal:
		reason := ReasonExhausted
		if r.complete(a) || r.complete(b) {
			reason = ReasonCompleted
		}
		r.finish(Outcome{Kind: OutcomeDraw, Reason: reason})
	case aTerminal:
		r.finishFor(a, b)
	case bTerminal:
		r.finishFor(b, a)
	}
}

func (r *Room) finishFor(terminal, other *playerState) {
	if r.complete(terminal) {
		r.finish(Outcome{Kind: OutcomeWin, WinnerID: terminal.id, Reason: ReasonCompleted})
		return
	}
	r.finish(Outcome{Kind: OutcomeWin, WinnerID: other.id, Reason: ReasonExhausted})
}

func (r *Room) finish(outcome Outcome) {
	r.outcome = outcome
	r.phase = PhaseFinished
	r.finishedAt = r.now().UTC()
}
