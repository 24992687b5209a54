package userservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sushihentaime/blogcms/internal/common"
)

var (
	ErrAuthenticationFailure = fmt.Errorf("unauthorized access")
)

func NewUserService(db *sql.DB, tokens *TokenIssuer) *UserService {
	return &UserService{
		m:      newUserModel(db),
		tokens: tokens,
	}
}

// CreateUser creates a user account holding the given permissions.
func (s *UserService) CreateUser(ctx context.Context, username, email, password string, permissions ...Permission) (*User, error) {
	v := common.NewValidator()
	validateUsername(v, username)
	validateEmail(v, email)
	validatePassword(v, password)
	validatePermissions(v, permissions)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	u := User{
		Username:    username,
		Email:       email,
		Password:    Password{Plain: password},
		Permissions: permissions,
	}

	err := u.Password.set(u.Password.Plain)
	if err != nil {
		return nil, err
	}

	tx, err := s.m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := s.m.insertUser(ctx, tx, &u); err != nil {
		return nil, err
	}

	if err := s.m.addUserPermission(tx, ctx, u.ID, permissions...); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return &u, nil
}

// LoginUser checks the credentials and returns a signed access token.
func (s *UserService) LoginUser(ctx context.Context, username, password string) (*AuthToken, error) {
	v := common.NewValidator()
	v.Check(username != "", "username", "must be provided")
	v.Check(password != "", "password", "must be provided")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	user, err := s.m.getUserByUsername(ctx, username)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, ErrAuthenticationFailure
		default:
			return nil, err
		}
	}

	ok, err := user.Password.compare(password)
	if err != nil {
		return nil, err
	}

	if !ok || !user.Activated {
		return nil, ErrAuthenticationFailure
	}

	return s.tokens.Issue(user)
}

// Authenticate resolves an access token to the user it was issued for.
func (s *UserService) Authenticate(token string) (*User, error) {
	v := common.NewValidator()
	v.Check(token != "", "token", "must be provided")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.tokens.Parse(token)
}

func (s *UserService) GetUserByID(ctx context.Context, id int) (*User, error) {
	v := common.NewValidator()
	validateInt(v, id, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getUserByID(ctx, id)
}

func (u *User) IsAnonymous() bool {
	return u == &AnonymousUser
}

func (u *User) HasPermission(permission Permission) bool {
	return u.Permissions.Include(permission)
}
