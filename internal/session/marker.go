package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MarkerSigner authenticates the room id kept in the client-side marker so
// that only markers this server issued can restore a session. The marker is
// an HS256 token whose subject is the room id.
type MarkerSigner struct {
	key []byte
}

func NewMarkerSigner(secret string) *MarkerSigner {
	return &MarkerSigner{key: []byte(secret)}
}

func (s *MarkerSigner) Sign(roomID string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  roomID,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign marker: %w", err)
	}
	return token, nil
}

// Verify returns the room id carried by value, or false when the value is
// malformed or was not signed with this key.
func (s *MarkerSigner) Verify(value string) (string, bool) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", false
	}
	return claims.Subject, true
}
