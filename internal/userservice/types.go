package userservice

import (
	"database/sql"
	"time"
)

type Permission string
type Permissions []Permission

const (
	AccessTokenTime time.Duration = 24 * time.Hour

	PermissionWritePost   Permission = "post:write"
	PermissionPublishPost Permission = "post:publish"
)

var (
	AnonymousUser = User{}
)

type UserService struct {
	m      *UserModel
	tokens *TokenIssuer
}

type UserModel struct {
	db *sql.DB
}

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  Password  `json:"-"`
	Activated bool      `json:"activated"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`

	Permissions Permissions `json:"permissions"`
}

type Password struct {
	Plain string `json:"-"`
	hash  []byte `json:"-"`
}

// AuthToken is a signed access token handed out on login.
type AuthToken struct {
	AccessToken string    `json:"access_token"`
	UserID      int       `json:"user_id"`
	Expiry      time.Time `json:"access_token_expiry"`
}

// TokenIssuer signs and verifies HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}
