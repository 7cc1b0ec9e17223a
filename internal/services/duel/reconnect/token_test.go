package reconnect

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/wordduel/internal/platform/errors"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, MinKeyBytes)
}

func newTestSigner(t *testing.T, now func() time.Time) *Signer {
	t.Helper()
	signer, err := NewSigner(Config{Key: testKey(), TTL: 10 * time.Minute, Now: now})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	signer := newTestSigner(t, func() time.Time { return now })

	token, err := signer.Issue("room-1", "player-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.RoomID != "room-1" || claims.PlayerID != "player-1" {
		t.Fatalf("claims = %+v", claims)
	}
	if !claims.ExpiresAt.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("expires at = %v, want %v", claims.ExpiresAt, now.Add(10*time.Minute))
	}
	if claims.JWTID == "" || !claims.IssuedAt.Equal(now) {
		t.Fatalf("claims metadata = %+v", claims)
	}
}

func TestVerifyExpired(t *testing.T) {
	now := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	clock := now
	signer := newTestSigner(t, func() time.Time { return clock })

	token, err := signer.Issue("room-1", "player-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	clock = now.Add(11 * time.Minute)
	_, err = signer.Verify(token)
	if !apperrors.HasCode(err, apperrors.CodeReconnectTokenExpired) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeReconnectTokenExpired)
	}
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	signer := newTestSigner(t, nil)
	other, err := NewSigner(Config{Key: bytes.Repeat([]byte{0x07}, MinKeyBytes), TTL: time.Minute})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	token, err := other.Issue("room-1", "player-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := signer.Verify(token); !apperrors.HasCode(err, apperrors.CodeReconnectTokenInvalid) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeReconnectTokenInvalid)
	}
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	signer := newTestSigner(t, nil)
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		RoomID:   "room-1",
		PlayerID: "player-1",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testKey())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := signer.Verify(token); !apperrors.HasCode(err, apperrors.CodeReconnectTokenInvalid) {
		t.Fatalf("err = %v, want %s", err, apperrors.CodeReconnectTokenInvalid)
	}
}

func TestVerifyRejectsMissingClaims(t *testing.T) {
	signer := newTestSigner(t, nil)
	tests := []struct {
		name   string
		claims tokenClaims
	}{
		{name: "wrong issuer", claims: tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
			RoomID:           "room-1", PlayerID: "player-1",
		}},
		{name: "missing exp", claims: tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
			RoomID:           "room-1", PlayerID: "player-1",
		}},
		{name: "missing room", claims: tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
			PlayerID:         "player-1",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tt.claims).SignedString(testKey())
			if err != nil {
				t.Fatalf("sign: %v", err)
			}
			if _, err := signer.Verify(token); !apperrors.HasCode(err, apperrors.CodeReconnectTokenInvalid) {
				t.Fatalf("err = %v, want %s", err, apperrors.CodeReconnectTokenInvalid)
			}
		})
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	signer := newTestSigner(t, nil)
	for _, token := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := signer.Verify(token); !apperrors.HasCode(err, apperrors.CodeReconnectTokenInvalid) {
			t.Fatalf("Verify(%q) err = %v", token, err)
		}
	}
}

func TestNewSignerValidation(t *testing.T) {
	if _, err := NewSigner(Config{Key: []byte("short"), TTL: time.Minute}); err == nil {
		t.Fatal("expected short key error")
	}
	if _, err := NewSigner(Config{Key: testKey()}); err == nil {
		t.Fatal("expected ttl error")
	}
}

func TestIssueRequiresIDs(t *testing.T) {
	signer := newTestSigner(t, nil)
	if _, err := signer.Issue(" ", "player"); err == nil {
		t.Fatal("expected missing room error")
	}
}

func TestDecodeKey(t *testing.T) {
	key, err := DecodeKey("  " + hex.EncodeToString(testKey()) + "\n")
	if err != nil {
		t.Fatalf("decode key: %v", err)
	}
	if !bytes.Equal(key, testKey()) {
		t.Fatal("decoded key mismatch")
	}
	if _, err := DecodeKey(""); err == nil {
		t.Fatal("expected empty key error")
	}
	if _, err := DecodeKey("zz"); err == nil {
		t.Fatal("expected hex error")
	}
	if _, err := DecodeKey(strings.Repeat("ab", 8)); err == nil {
		t.Fatal("expected short key error")
	}
}
