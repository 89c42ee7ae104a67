// Package qr signs boarding tokens, renders them as QR images and checks
// them at the door.
package qr

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/skip2/go-qrcode"
)

const DefaultTTL = 7 * 24 * time.Hour

type Claims struct {
	TicketID int64 `json:"ticketId"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Token signs a boarding token for ticketID.
func (s *Signer) Token(ticketID int64) (string, error) {
	now := s.now()
	claims := Claims{
		TicketID: ticketID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    "busticket-qr",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the ticket id of a valid, unexpired token.
func (s *Signer) Verify(token string) (int64, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, err
	}
	if claims.TicketID <= 0 {
		return 0, errors.New("token carries no ticket")
	}
	return claims.TicketID, nil
}

// VerifyURL is the link encoded in a ticket's QR code.
func VerifyURL(frontendURL, token string) string {
	return strings.TrimRight(frontendURL, "/") + "/verify-qr?token=" + url.QueryEscape(token)
}

// PNG renders content as a QR code image of size pixels.
func PNG(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = 256
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}
