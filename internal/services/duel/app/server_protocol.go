package server

import (
	"encoding/json"
	"errors"
	"log"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
	"github.com/louisbranch/wordduel/internal/services/duel/domain/room"
)

const (
	frameJoinRoom             = "joinRoom"
	frameRejoinRoom           = "rejoinRoom"
	frameGuessMade            = "guessMade"
	frameAck                  = "ack"
	frameGameStarted          = "gameStarted"
	frameOpponentGuessMade    = "opponentGuessMade"
	frameGameOver             = "gameOver"
	frameStateSync            = "stateSync"
	frameOpponentDisconnected = "opponentDisconnected"
	frameOpponentReconnected  = "opponentReconnected"
	frameError                = "error"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type joinRoomPayload struct {
	Username string `json:"username"`
}

type rejoinRoomPayload struct {
	Token string `json:"token"`
}

// guessMadePayload mirrors what clients send. Only Letter is trusted; the
// rest are local hints kept for telemetry.
type guessMadePayload struct {
	Letter            string   `json:"letter"`
	Room              string   `json:"room,omitempty"`
	Username          string   `json:"username,omitempty"`
	Score             *int     `json:"score,omitempty"`
	Word              string   `json:"word,omitempty"`
	RemainingAttempts *int     `json:"remainingAttempts,omitempty"`
	Guesses           []string `json:"guesses,omitempty"`
}

type joinAck struct {
	Success                bool     `json:"success"`
	WaitingForSecondPlayer bool     `json:"waitingForSecondPlayer"`
	Room                   string   `json:"room,omitempty"`
	PlayerID               string   `json:"playerId,omitempty"`
	ReconnectToken         string   `json:"reconnectToken,omitempty"`
	Error                  *wsError `json:"error,omitempty"`
}

type guessAck struct {
	Success           bool     `json:"success"`
	Status            string   `json:"status,omitempty"`
	Sequence          int64    `json:"sequence,omitempty"`
	Score             int      `json:"score"`
	RemainingAttempts int      `json:"remainingAttempts"`
	Finished          bool     `json:"finished"`
	Error             *wsError `json:"error,omitempty"`
}

type gameStartedPayload struct {
	Room     string `json:"room"`
	Word     string `json:"word"`
	Opponent string `json:"opponent"`
}

type opponentGuessMadePayload struct {
	OpponentScore             int `json:"opponentScore"`
	OpponentRemainingAttempts int `json:"opponentRemainingAttempts"`
}

type gameOverPayload struct {
	Result string `json:"result"`
	Word   string `json:"word"`
	Reason string `json:"reason,omitempty"`
}

type stateSyncPayload struct {
	room.View
	OpponentConnected bool `json:"opponentConnected"`
}

type opponentDisconnectedPayload struct {
	GraceSeconds int `json:"graceSeconds"`
}

func newFrame(frameType, requestID string, payload any) wsFrame {
	return wsFrame{Type: frameType, RequestID: requestID, Payload: mustJSON(payload)}
}

// errorFromApp renders err for clients. Codes outside the domain taxonomy
// become a generic INTERNAL error so no internal detail leaks.
func errorFromApp(err error) *wsError {
	code := apperrors.GetCode(err)
	if code == apperrors.CodeUnknown {
		return &wsError{Code: "INTERNAL", Message: "internal error"}
	}
	message := string(code)
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	return &wsError{
		Code:      code.WireCode(),
		Reason:    string(code),
		Message:   message,
		Retryable: code.Retryable(),
	}
}

func protocolError(code, message string) wsErrorEnvelope {
	return wsErrorEnvelope{Error: wsError{Code: code, Message: message}}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("duel: failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
