// Package errors provides structured domain errors for the duel service.
package errors

import (
	"strings"

	"google.golang.org/grpc/codes"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Matchmaking errors
	CodeUsernameRequired Code = "USERNAME_REQUIRED"
	CodeAlreadyInRoom    Code = "ALREADY_IN_ROOM"
	CodeWordUnavailable  Code = "WORD_UNAVAILABLE"

	// Room errors
	CodeRoomNotFound     Code = "ROOM_NOT_FOUND"
	CodeRoomNotActive    Code = "ROOM_NOT_ACTIVE"
	CodeRoomNotWaiting   Code = "ROOM_NOT_WAITING"
	CodeRoomInvalidWord  Code = "ROOM_INVALID_WORD"
	CodeUnknownPlayer    Code = "UNKNOWN_PLAYER"
	CodePlayerIDConflict Code = "PLAYER_ID_CONFLICT"

	// Guess errors
	CodeGuessMalformed Code = "GUESS_MALFORMED"

	// Reconnect errors
	CodeReconnectTokenInvalid Code = "RECONNECT_TOKEN_INVALID"
	CodeReconnectTokenExpired Code = "RECONNECT_TOKEN_EXPIRED"
	CodeSessionAlreadyBound   Code = "SESSION_ALREADY_BOUND"

	// Word catalog errors
	CodeWordCatalogEmpty Code = "WORD_CATALOG_EMPTY"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeUsernameRequired,
		CodeRoomInvalidWord,
		CodeGuessMalformed:
		return codes.InvalidArgument

	// FailedPrecondition - operation not allowed in the current state
	case CodeAlreadyInRoom,
		CodeRoomNotActive,
		CodeRoomNotWaiting,
		CodeSessionAlreadyBound:
		return codes.FailedPrecondition

	// Unauthenticated - reconnect credentials
	case CodeReconnectTokenInvalid,
		CodeReconnectTokenExpired:
		return codes.Unauthenticated

	// NotFound - resource doesn't exist
	case CodeRoomNotFound,
		CodeUnknownPlayer,
		CodeWordCatalogEmpty:
		return codes.NotFound

	// AlreadyExists - unique resource constraint
	case CodePlayerIDConflict:
		return codes.AlreadyExists

	// Unavailable - retryable upstream failure
	case CodeWordUnavailable:
		return codes.Unavailable

	default:
		return codes.Internal
	}
}

// WireCode returns the canonical upper-snake gRPC code name (for example
// INVALID_ARGUMENT) used in websocket error frames.
func (c Code) WireCode() string {
	name := c.GRPCCode().String()
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}

// Retryable reports whether a client may retry the same request unchanged.
func (c Code) Retryable() bool {
	return c.GRPCCode() == codes.Unavailable
}
