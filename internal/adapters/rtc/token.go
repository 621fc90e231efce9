// Package rtc issues access tokens for the third-party media transport.
// The engine never validates or stores these tokens; it only hands them to
// clients after a successful join.
package rtc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"

	"liveroom/internal/domain"
)

type Token struct {
	Token     string        `json:"token"`
	UserID    domain.UserID `json:"userId"`
	RoomID    domain.RoomID `json:"roomId"`
	ExpiresAt int64         `json:"expiresAt"`
	Nonce     int           `json:"nonce"`
}

// TokenService signs (userId, roomId) pairs with the provider's shared
// secret. The signature covers appID, room, user, expiry and a nonce.
type TokenService struct {
	appID  string
	secret string
	ttl    time.Duration
}

func NewTokenService(appID, secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TokenService{appID: appID, secret: secret, ttl: ttl}
}

func (s *TokenService) GenerateToken(userID domain.UserID, roomID domain.RoomID) Token {
	expiresAt := time.Now().Add(s.ttl).Unix()
	nonce := rand.IntN(100000)
	return Token{
		Token:     s.sign(userID, roomID, expiresAt, nonce),
		UserID:    userID,
		RoomID:    roomID,
		ExpiresAt: expiresAt,
		Nonce:     nonce,
	}
}

func (s *TokenService) sign(userID domain.UserID, roomID domain.RoomID, expiresAt int64, nonce int) string {
	mac := hmac.New(sha256.New, []byte(s.secret))
	fmt.Fprintf(mac, "%s%s%s%d%d", s.appID, roomID, userID, expiresAt, nonce)
	return hex.EncodeToString(mac.Sum(nil))
}
