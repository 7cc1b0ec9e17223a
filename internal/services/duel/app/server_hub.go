package server

import "sync"

// roomHub indexes live connections by player identity and running rooms by
// id. Sessions are registered while their player is in matchmaking so the
// room can reach them as soon as it activates.
type roomHub struct {
	mu       sync.Mutex
	sessions map[string]*wsSession
	rooms    map[string]*roomActor
}

func newRoomHub() *roomHub {
	return &roomHub{
		sessions: make(map[string]*wsSession),
		rooms:    make(map[string]*roomActor),
	}
}

func (h *roomHub) attach(identity string, session *wsSession) {
	h.mu.Lock()
	h.sessions[identity] = session
	h.mu.Unlock()
}

// detach removes identity only while it still points at session, so a
// replaced connection cannot unregister its successor.
func (h *roomHub) detach(identity string, session *wsSession) {
	h.mu.Lock()
	if h.sessions[identity] == session {
		delete(h.sessions, identity)
	}
	h.mu.Unlock()
}

func (h *roomHub) session(identity string) *wsSession {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[identity]
}

func (h *roomHub) register(actor *roomActor) {
	h.mu.Lock()
	h.rooms[actor.id] = actor
	h.mu.Unlock()
}

func (h *roomHub) room(roomID string) *roomActor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[roomID]
}

func (h *roomHub) remove(actor *roomActor) {
	h.mu.Lock()
	if h.rooms[actor.id] == actor {
		delete(h.rooms, actor.id)
	}
	h.mu.Unlock()
}

func (h *roomHub) roomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
