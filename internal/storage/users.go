package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (core.User, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?) RETURNING id`,
		arg.Username, arg.Email, arg.PasswordHash)

	u := core.User{Username: arg.Username, Email: arg.Email, PasswordHash: arg.PasswordHash}
	if err := row.Scan(&u.ID); err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (q *Queries) GetUser(ctx context.Context, id int64) (core.User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash FROM users WHERE id = ?`, id)

	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.User{}, core.Ef(core.KindNotFound, "user %d not found", id)
		}
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UserExists reports whether a user row exists without loading it.
func (q *Queries) UserExists(ctx context.Context, id int64) (bool, error) {
	row := q.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, id)
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// UsernameTaken reports whether a username is already registered.
func (q *Queries) UsernameTaken(ctx context.Context, username string) (bool, error) {
	row := q.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)`, username)
	var taken bool
	if err := row.Scan(&taken); err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return taken, nil
}

// EmailTaken reports whether an email is already registered.
func (q *Queries) EmailTaken(ctx context.Context, email string) (bool, error) {
	row := q.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email)
	var taken bool
	if err := row.Scan(&taken); err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return taken, nil
}

// ListUserIDs returns every user id, used by the audit sweep.
func (q *Queries) ListUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
