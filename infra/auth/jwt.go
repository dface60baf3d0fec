// Package auth verifies the signed token presented during the realtime handshake.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/webitel/im-notification-service/config"
)

// Claims carries the user identity. UserID falls back to the registered subject.
type Claims struct {
	jwt.RegisteredClaims
	UserID UserID `json:"userId,omitempty"`
}

// UserID decodes from a JSON string or number; numeric ids keep their literal form.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*u = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("userId must be a string or a number: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

var errNoIdentity = errors.New("token carries no user identity")

// JWT verifies and issues HS256 tokens with a shared secret.
type JWT struct {
	secret []byte
	issuer string
	parser *jwt.Parser
}

func NewJWT(secret, issuer string) *JWT {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &JWT{
		secret: []byte(secret),
		issuer: issuer,
		parser: jwt.NewParser(opts...),
	}
}

func NewFromConfig(cfg *config.Config) *JWT {
	return NewJWT(cfg.Auth.Secret, cfg.Auth.Issuer)
}

// Verify checks signature and expiry and returns the user id from the claims.
func (j *JWT) Verify(raw string) (string, error) {
	claims := &Claims{}
	token, err := j.parser.ParseWithClaims(raw, claims, func(_ *jwt.Token) (any, error) {
		return j.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("auth: token is invalid")
	}

	userID := string(claims.UserID)
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", fmt.Errorf("auth: %w", errNoIdentity)
	}
	return userID, nil
}

// Issue signs a token for userID. A zero ttl produces a token without expiry.
func (j *JWT) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   j.issuer,
		},
		UserID: UserID(userID),
	}
	if ttl != 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}
