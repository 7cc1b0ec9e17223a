package room

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
)

// Phase is the lifecycle phase of a room.
type Phase string

const (
	PhaseWaiting  Phase = "waiting"
	PhaseActive   Phase = "active"
	PhaseFinished Phase = "finished"
)

// Slot is a player position within a room.
type Slot string

const (
	SlotA Slot = "a"
	SlotB Slot = "b"
)

// Rules are the scoring parameters of a room.
type Rules struct {
	// Reward is added to a player's score for each correct letter.
	Reward int
	// MaxAttempts is the number of wrong guesses a player may make.
	MaxAttempts int
}

// DefaultRules returns the standard duel rules.
func DefaultRules() Rules {
	return Rules{Reward: 10, MaxAttempts: 6}
}

func (r Rules) normalized() Rules {
	defaults := DefaultRules()
	if r.Reward <= 0 {
		r.Reward = defaults.Reward
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = defaults.MaxAttempts
	}
	return r
}

// Seat identifies a player taking a slot.
type Seat struct {
	PlayerID string
	Username string
}

// Player is a read-only copy of one player's state.
type Player struct {
	ID                string
	Username          string
	Slot              Slot
	Score             int
	RemainingAttempts int
	Guesses           []Guess
}

// Guess is one accepted letter, sequenced per player.
type Guess struct {
	RoomID   string
	PlayerID string
	Letter   rune
	Sequence int64
	Correct  bool
	At       time.Time
}

type playerState struct {
	id        string
	username  string
	slot      Slot
	score     int
	remaining int
	guesses   []Guess
	guessed   map[rune]struct{}
}

func (p *playerState) snapshot() Player {
	guesses := make([]Guess, len(p.guesses))
	copy(guesses, p.guesses)
	return Player{
		ID:                p.id,
		Username:          p.username,
		Slot:              p.slot,
		Score:             p.score,
		RemainingAttempts: p.remaining,
		Guesses:           guesses,
	}
}

func (p *playerState) nextSequence() int64 {
	return int64(len(p.guesses)) + 1
}

func (p *playerState) exhausted() bool {
	return p.remaining <= 0
}

// Room is the authoritative state of one duel.
type Room struct {
	id      string
	word    string
	letters map[rune]struct{}
	players [2]*playerState
	phase   Phase
	outcome Outcome
	rules   Rules
	now     func() time.Time

	createdAt   time.Time
	activatedAt time.Time
	finishedAt  time.Time
}

// New creates a waiting room with first in slot A.
func New(id string, first Seat, rules Rules, now func() time.Time) (*Room, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.New(apperrors.CodeRoomNotFound, "room id is required")
	}
	seat, err := normalizeSeat(first)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	rules = rules.normalized()
	return &Room{
		id:        id,
		players:   [2]*playerState{newPlayerState(seat, SlotA, rules)},
		phase:     PhaseWaiting,
		rules:     rules,
		now:       now,
		createdAt: now().UTC(),
	}, nil
}

// Activate seats second in slot B, assigns the word, and moves the room to active.
func (r *Room) Activate(second Seat, word string) error {
	if r.phase != PhaseWaiting {
		return apperrors.New(apperrors.CodeRoomNotWaiting, "room is not waiting for a player")
	}
	seat, err := normalizeSeat(second)
	if err != nil {
		return err
	}
	if seat.PlayerID == r.players[0].id {
		return apperrors.WithMetadata(apperrors.CodePlayerIDConflict, "player already seated in this room",
			map[string]string{"PlayerID": seat.PlayerID})
	}
	word = strings.ToLower(strings.TrimSpace(word))
	if !ValidWord(word) {
		return apperrors.WithMetadata(apperrors.CodeRoomInvalidWord, "word must be one or more letters a-z",
			map[string]string{"Word": word})
	}

	r.word = word
	r.letters = distinctLetters(word)
	r.players[1] = newPlayerState(seat, SlotB, r.rules)
	r.phase = PhaseActive
	r.activatedAt = r.now().UTC()
	return nil
}

// ValidWord reports whether word is non-empty and only holds ASCII a-z.
func ValidWord(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < 'a' || word[i] > 'z' {
			return false
		}
	}
	return true
}

// ID returns the room id.
func (r *Room) ID() string { return r.id }

// Phase returns the lifecycle phase.
func (r *Room) Phase() Phase { return r.phase }

// Word returns the assigned word, empty while waiting.
func (r *Room) Word() string { return r.word }

// Outcome returns the termination outcome, zero until finished.
func (r *Room) Outcome() Outcome { return r.outcome }

// Rules returns the rules in effect.
func (r *Room) Rules() Rules { return r.rules }

// CreatedAt returns when the room was created.
func (r *Room) CreatedAt() time.Time { return r.createdAt }

// ActivatedAt returns when slot B was filled.
func (r *Room) ActivatedAt() time.Time { return r.activatedAt }

// FinishedAt returns when the room finished.
func (r *Room) FinishedAt() time.Time { return r.finishedAt }

// Player returns a copy of the player with id.
func (r *Room) Player(id string) (Player, bool) {
	p := r.player(id)
	if p == nil {
		return Player{}, false
	}
	return p.snapshot(), true
}

// Opponent returns a copy of the other player in the room.
func (r *Room) Opponent(id string) (Player, bool) {
	p := r.opponent(id)
	if p == nil {
		return Player{}, false
	}
	return p.snapshot(), true
}

// PlayerIDs returns the seated player ids in slot order.
func (r *Room) PlayerIDs() []string {
	ids := make([]string, 0, 2)
	for _, p := range r.players {
		if p != nil {
			ids = append(ids, p.id)
		}
	}
	return ids
}

func (r *Room) player(id string) *playerState {
	for _, p := range r.players {
		if p != nil && p.id == id {
			return p
		}
	}
	return nil
}

func (r *Room) opponent(id string) *playerState {
	switch {
	case r.players[0] != nil && r.players[0].id == id:
		return r.players[1]
	case r.players[1] != nil && r.players[1].id == id:
		return r.players[0]
	default:
		return nil
	}
}

func (r *Room) complete(p *playerState) bool {
	if len(r.letters) == 0 {
		return false
	}
	for letter := range r.letters {
		if _, ok := p.guessed[letter]; !ok {
			return false
		}
	}
	return true
}

func (r *Room) terminal(p *playerState) bool {
	return r.complete(p) || p.exhausted()
}

func newPlayerState(seat Seat, slot Slot, rules Rules) *playerState {
	return &playerState{
		id:        seat.PlayerID,
		username:  seat.Username,
		slot:      slot,
		remaining: rules.MaxAttempts,
		guessed:   make(map[rune]struct{}),
	}
}

func normalizeSeat(seat Seat) (Seat, error) {
	seat.PlayerID = strings.TrimSpace(seat.PlayerID)
	seat.Username = strings.TrimSpace(seat.Username)
	if seat.Username == "" {
		return Seat{}, apperrors.New(apperrors.CodeUsernameRequired, "username is required")
	}
	if seat.PlayerID == "" {
		return Seat{}, apperrors.New(apperrors.CodeUnknownPlayer, "player id is required")
	}
	return seat, nil
}

func distinctLetters(word string) map[rune]struct{} {
	letters := make(map[rune]struct{}, len(word))
	for _, letter := range word {
		letters[letter] = struct{}{}
	}
	return letters
}
