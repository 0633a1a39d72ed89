package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/lreview/lreview/internal/model"
)

// Common errors for post repository operations.
var (
	ErrPostNotFound = errors.New("post not found")
)

const postColumns = "id, title, body, happen_age, introspection, emotion, score, timestamp, owner_id, created_at, updated_at"

// CreatePost inserts a post and its images in one transaction, so a
// post never commits with half of its attachments.
func (r *Repository) CreatePost(ctx context.Context, post *model.Post) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO posts (id, title, body, happen_age, introspection, emotion, score, timestamp, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = tx.Exec(ctx, query,
		post.ID,
		post.Title,
		post.Body,
		post.HappenAge,
		post.Introspection,
		post.Emotion,
		post.Score,
		post.Timestamp,
		post.OwnerID,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	for _, img := range post.Images {
		if err := insertImage(ctx, tx, img); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit post: %w", err)
	}

	return nil
}

// GetPostByID retrieves a post with its images.
func (r *Repository) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post by ID: %w", err)
	}

	images, err := r.ListImagesByPost(ctx, id)
	if err != nil {
		return nil, err
	}
	post.Images = images

	return post, nil
}

// ListPostsByOwner retrieves one page of a user's posts, newest first,
// along with the total count for pagination metadata.
func (r *Repository) ListPostsByOwner(ctx context.Context, ownerID string, page, perPage int) ([]*model.Post, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM posts WHERE owner_id = $1`, ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE owner_id = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating posts: %w", err)
	}

	for _, post := range posts {
		images, err := r.ListImagesByPost(ctx, post.ID)
		if err != nil {
			return nil, 0, err
		}
		post.Images = images
	}

	return posts, total, nil
}

// UpdatePost updates the mutable fields of a post.
func (r *Repository) UpdatePost(ctx context.Context, post *model.Post) error {
	query := `
		UPDATE posts
		SET title = $2, body = $3, happen_age = $4, introspection = $5, emotion = $6, score = $7, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		post.ID,
		post.Title,
		post.Body,
		post.HappenAge,
		post.Introspection,
		post.Emotion,
		post.Score,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPostNotFound
	}

	return nil
}

// DeletePost removes a post and its image rows in one transaction and
// returns the filename refs of the removed images so the caller can
// clean up the backing files after the commit.
func (r *Repository) DeletePost(ctx context.Context, id string) ([]string, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx,
		`DELETE FROM images WHERE post_id = $1 RETURNING filename_ref`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete images: %w", err)
	}

	var filenames []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan image filename: %w", err)
		}
		filenames = append(filenames, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating image filenames: %w", err)
	}

	result, err := tx.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, ErrPostNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit post deletion: %w", err)
	}

	return filenames, nil
}

// scanPost scans a single row into a Post model.
func scanPost(row pgx.Row) (*model.Post, error) {
	var post model.Post
	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Body,
		&post.HappenAge,
		&post.Introspection,
		&post.Emotion,
		&post.Score,
		&post.Timestamp,
		&post.OwnerID,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	return &post, err
}
