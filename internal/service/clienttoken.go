package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/msomdec/lifelink/internal/domain"
)

// ClientTokenLifetime is how long a browser identity token stays valid.
const ClientTokenLifetime = 30 * 24 * time.Hour

// ClientTokens issues and validates the signed token that identifies a
// browser across requests.
type ClientTokens struct {
	secret []byte
	now    func() time.Time
}

// NewClientTokens creates a new ClientTokens.
func NewClientTokens(secret string) *ClientTokens {
	return &ClientTokens{secret: []byte(secret), now: time.Now}
}

// Issue creates a fresh browser id and returns it with its signed token.
func (c *ClientTokens) Issue() (browserID, token string, err error) {
	browserID = uuid.NewString()
	token, err = c.Sign(browserID)
	if err != nil {
		return "", "", err
	}
	return browserID, token, nil
}

// Sign returns a token whose subject is browserID.
func (c *ClientTokens) Sign(browserID string) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"sub": browserID,
		"iat": now.Unix(),
		"exp": now.Add(ClientTokenLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign client token: %w", err)
	}
	return signed, nil
}

// Validate parses a token and returns its browser id.
func (c *ClientTokens) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(c.now))
	if err != nil {
		return "", domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.ErrUnauthorized
	}
	return sub, nil
}
