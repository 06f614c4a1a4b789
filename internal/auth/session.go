// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jason-s-yu/bridgeduel/internal/models"
)

// privateKey and publicKey sign and verify seat tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TokenTTL is how long a seat token stays valid (0 => never expires).
	TokenTTL time.Duration
)

// ErrSeatMismatch is returned when a valid token names another room.
var ErrSeatMismatch = errors.New("seat token is for a different room")

// SeatClaims identify one seat in one room.
type SeatClaims struct {
	Room string          `json:"room"`
	Role models.PlayerID `json:"role"`
	jwt.RegisteredClaims
}

// parseTokenTTL reads TOKEN_EXPIRE_TIME ("never", "0", or a Go duration).
func parseTokenTTL() error {
	raw := os.Getenv("TOKEN_EXPIRE_TIME")
	if raw == "never" || raw == "0" || raw == "" {
		TokenTTL = 0
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("failed to parse TOKEN_EXPIRE_TIME: %w", err)
	}
	TokenTTL = d
	return nil
}

// Init generates a fresh ed25519 key pair. Tokens do not survive a relay restart,
// and neither do rooms.
func Init() error {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return parseTokenTTL()
}

// InitFromPath reads ed25519 private/public keys from file.
func InitFromPath(privatePath, publicPath string) error {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return fmt.Errorf("failed to read public key file: %w", err)
	}

	privateKey = ed25519.PrivateKey(privateKeyData)
	publicKey = ed25519.PublicKey(publicKeyData)
	return parseTokenTTL()
}

// CreateSeatToken signs a token entitling its bearer to role in roomID.
func CreateSeatToken(roomID string, role models.PlayerID) (string, error) {
	claims := SeatClaims{
		Room: roomID,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  roomID + ":" + string(role),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	if TokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(TokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateSeat verifies a seat token for roomID and returns the seat's role.
func AuthenticateSeat(tokenString, roomID string) (models.PlayerID, error) {
	claims := &SeatClaims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims.Room != roomID {
		return "", ErrSeatMismatch
	}
	if !claims.Role.Valid() {
		return "", fmt.Errorf("invalid role %q in token", claims.Role)
	}
	return claims.Role, nil
}
