package userservice

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sushihentaime/blogcms/internal/common"
)

var (
	ErrDuplicateUsername = errors.New("duplicate username")
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrNotFound          = errors.New("user not found")
)

func newUserModel(db *sql.DB) *UserModel {
	return &UserModel{db: db}
}

func (m *UserModel) insertUser(ctx context.Context, tx *sql.Tx, u *User) error {
	query := `
		INSERT INTO users (username, email, password)
		VALUES ($1, $2, $3)
		RETURNING id, activated, created_at, updated_at, version`

	args := []any{
		u.Username,
		u.Email,
		u.Password.hash,
	}

	err := tx.QueryRowContext(ctx, query, args...).Scan(&u.ID, &u.Activated, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	if err != nil {
		switch {
		case common.UniqueViolation(err, "users_username_key"):
			return ErrDuplicateUsername
		case common.UniqueViolation(err, "users_email_key"):
			return ErrDuplicateEmail
		default:
			return err
		}
	}
	return nil
}

func (m *UserModel) getUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT id, username, email, password, activated, created_at, updated_at, version
		FROM users
		WHERE username = $1`

	var u User

	err := m.db.QueryRowContext(ctx, query, username).Scan(&u.ID, &u.Username, &u.Email, &u.Password.hash, &u.Activated, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNotFound
		default:
			return nil, err
		}
	}

	u.Permissions, err = m.getPermissions(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (m *UserModel) getUserByID(ctx context.Context, id int) (*User, error) {
	query := `
		SELECT id, username, email, activated, created_at, updated_at, version
		FROM users
		WHERE id = $1`

	var u User

	err := m.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &u.Email, &u.Activated, &u.CreatedAt, &u.UpdatedAt, &u.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrNotFound
		default:
			return nil, err
		}
	}

	u.Permissions, err = m.getPermissions(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	return &u, nil
}
