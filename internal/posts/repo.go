package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var ErrPostNotFound = errors.New("post not found")

type Post struct {
	ID        int64          `json:"id" db:"id"`
	UserID    int64          `json:"userId" db:"user_id"`
	Title     string         `json:"title" db:"title"`
	ImageURLs sql.NullString `json:"-" db:"image_urls"`
	Price     *int64         `json:"price" db:"price"`
	Status    string         `json:"status" db:"status"`
	Views     int64          `json:"views" db:"views"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// OwnerID resolves the seller behind a listing; the ok flag is false when the
// listing does not exist.
func (r *Repo) OwnerID(ctx context.Context, postID int64) (int64, bool, error) {
	const op = "posts.repo.OwnerID"

	var ownerID int64
	err := r.db.GetContext(ctx, &ownerID, r.db.Rebind(`
		SELECT user_id FROM posts WHERE id = ? LIMIT 1
	`), postID)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", op, err)
	}

	return ownerID, true, nil
}

func (r *Repo) Get(ctx context.Context, postID int64) (Post, error) {
	const op = "posts.repo.Get"

	var p Post
	err := r.db.GetContext(ctx, &p, r.db.Rebind(`
		SELECT id, user_id, title, image_urls, price, status, views, created_at
		FROM posts
		WHERE id = ?
		LIMIT 1
	`), postID)

	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrPostNotFound
	}
	if err != nil {
		return Post{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (r *Repo) IncrementViews(ctx context.Context, postID int64) error {
	const op = "posts.repo.IncrementViews"

	if _, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE posts SET views = views + 1 WHERE id = ?
	`), postID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
