// Package reconnect issues and verifies the tokens that let a player rebind
// a new connection to the room they were playing in.
//
// Tokens are HS256 JWTs carrying the room id and player id. They prove only
// that the bearer was seated in that room; they are not user credentials.
package reconnect

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
	"github.com/louisbranch/wordduel/internal/platform/id"
)

const (
	issuer = "wordduel"
	// MinKeyBytes is the shortest accepted signing key.
	MinKeyBytes = 32
)

// Config defines how reconnect tokens are signed and checked.
type Config struct {
	Key []byte
	TTL time.Duration
	Now func() time.Time
}

// Claims are the validated contents of a reconnect token.
type Claims struct {
	RoomID    string
	PlayerID  string
	JWTID     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

// Signer issues and verifies reconnect tokens.
type Signer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSigner validates cfg and returns a Signer.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Key) < MinKeyBytes {
		return nil, fmt.Errorf("reconnect key must be at least %d bytes", MinKeyBytes)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("reconnect token ttl must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)
	return &Signer{key: key, ttl: cfg.TTL, now: cfg.Now}, nil
}

// DecodeKey parses a hex-encoded signing key as printed by hmac-key.
func DecodeKey(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("reconnect key is empty")
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode reconnect key: %w", err)
	}
	if len(key) < MinKeyBytes {
		return nil, fmt.Errorf("reconnect key must be at least %d bytes", MinKeyBytes)
	}
	return key, nil
}

// Issue returns a token binding playerID to roomID.
func (s *Signer) Issue(roomID, playerID string) (string, error) {
	roomID = strings.TrimSpace(roomID)
	playerID = strings.TrimSpace(playerID)
	if roomID == "" || playerID == "" {
		return "", errors.New("room id and player id are required")
	}
	jti, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}
	now := s.now().UTC()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   playerID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		RoomID:   roomID,
		PlayerID: playerID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign reconnect token: %w", err)
	}
	return token, nil
}

// Verify checks the signature and expiry of token and returns its claims.
func (s *Signer) Verify(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeReconnectTokenInvalid, "reconnect token is required")
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer != issuer {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeReconnectTokenInvalid, "reconnect token issuer mismatch",
			map[string]string{"Field": "issuer"})
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeReconnectTokenInvalid, "reconnect token exp is required")
	}
	now := s.now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeReconnectTokenExpired, "reconnect token is expired")
	}
	if strings.TrimSpace(parsed.RoomID) == "" || strings.TrimSpace(parsed.PlayerID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeReconnectTokenInvalid, "reconnect token is missing room or player")
	}

	claims := Claims{
		RoomID:    parsed.RoomID,
		PlayerID:  parsed.PlayerID,
		JWTID:     parsed.ID,
		ExpiresAt: exp,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeReconnectTokenInvalid, "reconnect token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeReconnectTokenInvalid, "reconnect token alg is invalid")
	}
	return apperrors.New(apperrors.CodeReconnectTokenInvalid, "reconnect token is invalid")
}
