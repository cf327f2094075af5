package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = errors.New("user not found")

type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Nickname(ctx context.Context, userID int64) (string, error) {
	const op = "users.repo.Nickname"

	var nickname string
	err := r.db.GetContext(ctx, &nickname, r.db.Rebind(`
		SELECT nickname FROM users WHERE id = ? LIMIT 1
	`), userID)

	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return nickname, nil
}
