package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	peerSendBuffer = 64
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

// wsPeer owns the write side of one websocket connection. Frames are queued
// and written by a single goroutine so senders never block on the network.
type wsPeer struct {
	conn      *websocket.Conn
	send      chan wsFrame
	done      chan struct{}
	closeOnce sync.Once
}

func newWSPeer(conn *websocket.Conn) *wsPeer {
	return &wsPeer{
		conn: conn,
		send: make(chan wsFrame, peerSendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue queues frame for delivery. It reports false when the peer is closed
// or its queue is full; the frame is dropped in both cases.
func (p *wsPeer) enqueue(frame wsFrame) bool {
	if p == nil {
		return false
	}
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

func (p *wsPeer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

func (p *wsPeer) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// writePump drains the queue and keeps the connection alive with pings. It
// returns when the peer is closed or a write fails, and closes the socket
// on the way out so the read loop unblocks.
func (p *wsPeer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.close()
		_ = p.conn.Close()
	}()

	for {
		select {
		case frame := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.done:
			p.flush()
			_ = p.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes frames already queued when the peer was closed.
func (p *wsPeer) flush() {
	for {
		select {
		case frame := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteJSON(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// wsSession tracks which player and room a connection speaks for.
type wsSession struct {
	mu       sync.Mutex
	connID   string
	playerID string
	peer     *wsPeer
	room     *roomActor
}

func newWSSession(connID string, peer *wsPeer) *wsSession {
	return &wsSession{connID: connID, playerID: connID, peer: peer}
}

func (s *wsSession) identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playerID
}

func (s *wsSession) bind(playerID string, actor *roomActor) {
	s.mu.Lock()
	s.playerID = playerID
	s.room = actor
	s.mu.Unlock()
}

func (s *wsSession) setRoom(actor *roomActor) {
	s.mu.Lock()
	s.room = actor
	s.mu.Unlock()
}

func (s *wsSession) currentRoom() *roomActor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}
