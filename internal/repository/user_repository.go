package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/rental-booking/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so lookups can run
// inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// GetByUsernameTx fetches a user by username.  Usernames are compared
// after trimming surrounding whitespace.
func (r *UserRepo) GetByUsernameTx(ctx context.Context, q querier, username string) (model.User, error) {
	username = strings.TrimSpace(username)
	var u model.User
	err := q.QueryRowContext(ctx,
		"SELECT id,username,email,created_at FROM users WHERE username=? LIMIT 1",
		username).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// GetByIDTx fetches a user by id.
func (r *UserRepo) GetByIDTx(ctx context.Context, q querier, id uint64) (model.User, error) {
	var u model.User
	err := q.QueryRowContext(ctx,
		"SELECT id,username,email,created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}
