package userservice

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = AccessTokenTime
	}

	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs an access token for u. The subject is the user ID and the
// permissions travel in the claims so requests need no database lookup.
func (t *TokenIssuer) Issue(u *User) (*AuthToken, error) {
	now := t.now()
	expiry := now.Add(t.ttl)

	permissions := make([]string, 0, len(u.Permissions))
	for _, p := range u.Permissions {
		permissions = append(permissions, string(p))
	}

	claims := jwt.MapClaims{
		"sub":         strconv.Itoa(u.ID),
		"username":    u.Username,
		"permissions": permissions,
		"iat":         now.Unix(),
		"exp":         expiry.Unix(),
		"jti":         uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("could not sign token: %w", err)
	}

	return &AuthToken{AccessToken: signed, UserID: u.ID, Expiry: expiry}, nil
}

// Parse verifies token and rebuilds the user it was issued for.
func (t *TokenIssuer) Parse(token string) (*User, error) {
	parsed, err := jwt.Parse(token, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, ErrInvalidToken
	}

	id, err := strconv.Atoi(sub)
	if err != nil || id < 1 {
		return nil, ErrInvalidToken
	}

	u := &User{ID: id, Activated: true}
	u.Username, _ = claims["username"].(string)

	raw, _ := claims["permissions"].([]any)
	for _, p := range raw {
		if s, ok := p.(string); ok {
			u.Permissions = append(u.Permissions, Permission(s))
		}
	}

	return u, nil
}
