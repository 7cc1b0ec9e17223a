// Package registry matches joining players into rooms.
//
// All matchmaking state lives behind one mutex: the FIFO of waiting rooms,
// the identity index, and the word draw made while a room activates. Holding
// the lock across the draw is what keeps a failed draw from leaving two
// single-occupant rooms behind; the draw is bounded by WordTimeout.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
	"github.com/louisbranch/wordduel/internal/platform/id"
	"github.com/louisbranch/wordduel/internal/platform/timeouts"
	"github.com/louisbranch/wordduel/internal/services/duel/domain/room"
	"github.com/louisbranch/wordduel/internal/services/duel/words"
)

// Config wires a Registry.
type Config struct {
	Supplier    words.Supplier
	Rules       room.Rules
	WordTimeout time.Duration
	NewID       func() (string, error)
	Now         func() time.Time
	// OnActivate is called with the lock held as soon as a room becomes
	// active, before Join returns. It must not block or call back into the
	// Registry.
	OnActivate func(*room.Room)
}

// Assignment is the result of a successful join.
type Assignment struct {
	RoomID   string
	PlayerID string
	Slot     room.Slot
	// Waiting is true when the caller opened a new room.
	Waiting bool
	// Room is set when the caller completed a room. From here on the room
	// belongs to whoever OnActivate handed it to.
	Room *room.Room
}

// Departure describes what Leave did.
type Departure struct {
	RoomID string
	// Abandoned is true when a waiting room was closed.
	Abandoned bool
	// Active is true when the identity belongs to an active room; the caller
	// must forward the disconnect to that room.
	Active bool
}

// Registry is the matchmaking index.
type Registry struct {
	mu      sync.Mutex
	cfg     Config
	waiting []*room.Room
	rooms   map[string]string   // identity -> room id
	members map[string][]string // room id -> identities
}

// New returns a Registry. A missing supplier is an error.
func New(cfg Config) (*Registry, error) {
	if cfg.Supplier == nil {
		return nil, fmt.Errorf("word supplier is required")
	}
	if cfg.WordTimeout <= 0 {
		cfg.WordTimeout = timeouts.WordDraw
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Registry{
		cfg:     cfg,
		rooms:   make(map[string]string),
		members: make(map[string][]string),
	}, nil
}

// Join places identity into the oldest waiting room or opens a new one.
// A rejected join leaves the registry unchanged.
func (r *Registry) Join(ctx context.Context, identity, username string) (Assignment, error) {
	identity = strings.TrimSpace(identity)
	username = strings.TrimSpace(username)
	if username == "" {
		return Assignment{}, apperrors.New(apperrors.CodeUsernameRequired, "username is required")
	}
	if identity == "" {
		return Assignment{}, apperrors.New(apperrors.CodeUnknownPlayer, "identity is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if roomID, ok := r.rooms[identity]; ok {
		return Assignment{}, apperrors.WithMetadata(apperrors.CodeAlreadyInRoom, "player is already in a room",
			map[string]string{"RoomID": roomID})
	}
	if len(r.waiting) > 0 {
		return r.completeLocked(ctx, identity, username)
	}
	return r.openLocked(identity, username)
}

func (r *Registry) openLocked(identity, username string) (Assignment, error) {
	roomID, err := r.cfg.NewID()
	if err != nil {
		return Assignment{}, fmt.Errorf("generate room id: %w", err)
	}
	created, err := room.New(roomID, room.Seat{PlayerID: identity, Username: username}, r.cfg.Rules, r.cfg.Now)
	if err != nil {
		return Assignment{}, err
	}
	r.waiting = append(r.waiting, created)
	r.rooms[identity] = roomID
	r.members[roomID] = []string{identity}
	return Assignment{RoomID: roomID, PlayerID: identity, Slot: room.SlotA, Waiting: true}, nil
}

func (r *Registry) completeLocked(ctx context.Context, identity, username string) (Assignment, error) {
	head := r.waiting[0]

	drawCtx, cancel := context.WithTimeout(ctx, r.cfg.WordTimeout)
	word, err := r.cfg.Supplier.NextWord(drawCtx)
	cancel()
	if err != nil {
		return Assignment{}, words.Unavailable(err)
	}
	if err := head.Activate(room.Seat{PlayerID: identity, Username: username}, word); err != nil {
		if apperrors.HasCode(err, apperrors.CodeRoomInvalidWord) {
			return Assignment{}, words.Unavailable(err)
		}
		return Assignment{}, err
	}

	r.waiting = r.waiting[1:]
	r.rooms[identity] = head.ID()
	r.members[head.ID()] = append(r.members[head.ID()], identity)
	if r.cfg.OnActivate != nil {
		r.cfg.OnActivate(head)
	}
	return Assignment{RoomID: head.ID(), PlayerID: identity, Slot: room.SlotB, Room: head}, nil
}

// Leave handles a disconnect by identity. A waiting room left by its only
// member is abandoned and its identity freed.
func (r *Registry) Leave(identity string) (Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.rooms[identity]
	if !ok {
		return Departure{}, false
	}
	for i, waiting := range r.waiting {
		if waiting.ID() != roomID {
			continue
		}
		waiting.Abandon()
		r.waiting = append(r.waiting[:i], r.waiting[i+1:]...)
		r.releaseLocked(roomID)
		return Departure{RoomID: roomID, Abandoned: true}, true
	}
	return Departure{RoomID: roomID, Active: true}, true
}

// Release frees the identities of a finished room so they can join again.
func (r *Registry) Release(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(roomID)
}

func (r *Registry) releaseLocked(roomID string) {
	for _, identity := range r.members[roomID] {
		if r.rooms[identity] == roomID {
			delete(r.rooms, identity)
		}
	}
	delete(r.members, roomID)
}

// RoomOf returns the room an identity is assigned to.
func (r *Registry) RoomOf(identity string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, ok := r.rooms[identity]
	return roomID, ok
}

// Waiting returns the number of waiting rooms.
func (r *Registry) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiting)
}

// Rooms returns the number of rooms with at least one assigned identity.
func (r *Registry) Rooms() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}
