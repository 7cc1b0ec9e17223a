package room

import (
	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
)

// GuessStatus describes what happened to one guess intent.
type GuessStatus string

const (
	// StatusApplied means the letter was recorded and scored.
	StatusApplied GuessStatus = "applied"
	// StatusDuplicate means the player had already guessed the letter.
	StatusDuplicate GuessStatus = "duplicate"
	// StatusStale means the room or the player had already reached a terminal state.
	StatusStale GuessStatus = "stale"
	// StatusRejected means the intent was invalid; Err holds the reason.
	StatusRejected GuessStatus = "rejected"
)

// GuessIntent is a letter a player wants to guess. Only the letter is trusted;
// anything else a client reports is derived here instead.
type GuessIntent struct {
	PlayerID string
	Letter   string
}

// GuessOutcome is the authoritative result of one intent. Score and
// RemainingAttempts always describe the guessing player after the step.
type GuessOutcome struct {
	PlayerID          string
	Letter            rune
	Status            GuessStatus
	Sequence          int64
	Correct           bool
	Score             int
	RemainingAttempts int
	// Finished reports whether the room is finished after the step.
	Finished bool
	Err      error
}

// StepResult is the result of one evaluation step.
type StepResult struct {
	// Outcomes holds one entry per intent in input order.
	Outcomes []GuessOutcome
	// Finished is true when this step moved the room to finished.
	Finished bool
}

// Applied returns the outcomes that changed state.
func (s StepResult) Applied() []GuessOutcome {
	applied := make([]GuessOutcome, 0, len(s.Outcomes))
	for _, outcome := range s.Outcomes {
		if outcome.Status == StatusApplied {
			applied = append(applied, outcome)
		}
	}
	return applied
}

// ParseLetter validates a guess payload: exactly one ASCII letter.
// Upper-case letters are folded to lower case.
func ParseLetter(value string) (rune, error) {
	if len(value) != 1 {
		return 0, apperrors.New(apperrors.CodeGuessMalformed, "guess must be a single letter")
	}
	c := value[0]
	if c >= 'A' && c <= 'Z' {
		c += 'a' - 'A'
	}
	if c < 'a' || c > 'z' {
		return 0, apperrors.New(apperrors.CodeGuessMalformed, "guess must be a letter a-z")
	}
	return rune(c), nil
}

// ApplyGuess applies a single guess as its own evaluation step.
func (r *Room) ApplyGuess(playerID, letter string) (GuessOutcome, error) {
	result := r.ApplyStep([]GuessIntent{{PlayerID: playerID, Letter: letter}})
	outcome := result.Outcomes[0]
	return outcome, outcome.Err
}

// ApplyStep applies intents in order and then evaluates termination once.
//
// Once a player becomes terminal partway through the step the room is closed:
// that player's later intents are stale, and so is every opponent intent
// except one that makes the opponent terminal too, which ends the step in a
// draw. Rejected intents never change state or advance sequence numbers.
func (r *Room) ApplyStep(intents []GuessIntent) StepResult {
	result := StepResult{Outcomes: make([]GuessOutcome, len(intents))}
	wasFinished := r.phase == PhaseFinished

	closed := false
	for i, intent := range intents {
		result.Outcomes[i] = r.applyIntent(intent, closed)
		if !closed && r.phase == PhaseActive && r.anyTerminal() {
			closed = true
		}
	}

	if r.phase == PhaseActive {
		r.evaluate()
	}
	finished := r.phase == PhaseFinished
	result.Finished = finished && !wasFinished
	for i := range result.Outcomes {
		outcome := &result.Outcomes[i]
		if outcome.Err != nil {
			continue
		}
		outcome.Finished = finished
		if p := r.player(outcome.PlayerID); p != nil {
			outcome.Score = p.score
			outcome.RemainingAttempts = p.remaining
		}
	}
	return result
}

func (r *Room) applyIntent(intent GuessIntent, closed bool) GuessOutcome {
	outcome := GuessOutcome{PlayerID: intent.PlayerID}
	reject := func(err error) GuessOutcome {
		outcome.Status = StatusRejected
		outcome.Err = err
		return outcome
	}

	if r.phase == PhaseWaiting {
		return reject(apperrors.New(apperrors.CodeRoomNotActive, "room is waiting for a second player"))
	}
	p := r.player(intent.PlayerID)
	if p == nil {
		return reject(apperrors.WithMetadata(apperrors.CodeUnknownPlayer, "player is not in this room",
			map[string]string{"PlayerID": intent.PlayerID}))
	}
	letter, err := ParseLetter(intent.Letter)
	if err != nil {
		return reject(err)
	}
	outcome.Letter = letter

	if r.phase == PhaseFinished || r.terminal(p) || (closed && !r.terminates(p, letter)) {
		outcome.Status = StatusStale
		return outcome
	}
	if _, seen := p.guessed[letter]; seen {
		outcome.Status = StatusDuplicate
		outcome.Sequence = sequenceOf(p, letter)
		_, outcome.Correct = r.letters[letter]
		return outcome
	}

	_, correct := r.letters[letter]
	guess := Guess{
		RoomID:   r.id,
		PlayerID: p.id,
		Letter:   letter,
		Sequence: p.nextSequence(),
		Correct:  correct,
		At:       r.now().UTC(),
	}
	p.guesses = append(p.guesses, guess)
	p.guessed[letter] = struct{}{}
	if correct {
		p.score += r.rules.Reward
	} else {
		p.remaining--
	}

	outcome.Status = StatusApplied
	outcome.Sequence = guess.Sequence
	outcome.Correct = correct
	return outcome
}

func (r *Room) anyTerminal() bool {
	for _, p := range r.players {
		if p != nil && r.terminal(p) {
			return true
		}
	}
	return false
}

// terminates reports whether guessing letter would leave p complete or
// exhausted.
func (r *Room) terminates(p *playerState, letter rune) bool {
	if _, seen := p.guessed[letter]; seen {
		return false
	}
	if _, correct := r.letters[letter]; !correct {
		return p.remaining <= 1
	}
	for want := range r.letters {
		if want == letter {
			continue
		}
		if _, ok := p.guessed[want]; !ok {
			return false
		}
	}
	return true
}

func sequenceOf(p *playerState, letter rune) int64 {
	for _, guess := range p.guesses {
		if guess.Letter == letter {
			return guess.Sequence
		}
	}
	return 0
}
