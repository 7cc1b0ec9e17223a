package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxDecodeErrorsPerConn = 3
	maxFramesPerSecond     = 40
	socketPath             = "/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type socketInfo struct {
	Path string `json:"path"`
}

func newHandler(svc *duelService) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Clients ask where the socket lives before dialing it.
	mux.HandleFunc("/api/socket", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(socketInfo{Path: socketPath}); err != nil {
			log.Printf("duel: write socket info: %v", err)
		}
	})

	mux.HandleFunc(socketPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("duel: websocket upgrade failed remote=%s err=%v", r.RemoteAddr, err)
			return
		}
		svc.serveConn(conn)
	})

	return mux
}

// serveConn runs the read loop of one websocket connection until the client
// goes away, misbehaves, or the service shuts down.
func (s *duelService) serveConn(conn *websocket.Conn) {
	connID, err := s.newID()
	if err != nil {
		log.Printf("duel: connection id: %v", err)
		_ = conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	peer := newWSPeer(conn)
	session := newWSSession(connID, peer)
	go peer.writePump()
	go func() {
		select {
		case <-ctx.Done():
			peer.close()
		case <-peer.done:
		}
	}()
	defer func() {
		s.handleDisconnect(session)
		peer.close()
		cancel()
	}()

	conn.SetReadLimit(maxFramePayloadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	windowStart := time.Now()
	framesInWindow := 0
	decodeErrors := 0

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("duel: websocket read conn=%q err=%v", connID, err)
			}
			return
		}

		var frame wsFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			decodeErrors++
			peer.enqueue(newFrame(frameError, "", protocolError("INVALID_ARGUMENT", "invalid frame payload")))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		now := time.Now()
		if now.Sub(windowStart) >= time.Second {
			windowStart = now
			framesInWindow = 0
		}
		framesInWindow++
		if framesInWindow > maxFramesPerSecond {
			peer.enqueue(newFrame(frameError, frame.RequestID, protocolError("RESOURCE_EXHAUSTED", "rate limit exceeded")))
			return
		}

		switch frame.Type {
		case frameJoinRoom:
			s.handleJoin(ctx, session, frame)
		case frameRejoinRoom:
			s.handleRejoin(ctx, session, frame)
		case frameGuessMade:
			s.handleGuess(ctx, session, frame)
		default:
			peer.enqueue(newFrame(frameError, frame.RequestID, protocolError("INVALID_ARGUMENT", "unsupported frame type")))
		}
	}
}
