package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/lreview/lreview/internal/model"
)

// execer is satisfied by both pgxpool.Pool and pgx.Tx; image rows are
// only written inside the post-create transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// ListImagesByPost retrieves all images attached to a post.
func (r *Repository) ListImagesByPost(ctx context.Context, postID string) ([]*model.Image, error) {
	query := `
		SELECT id, filename_ref, post_id, created_at
		FROM images
		WHERE post_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*model.Image
	for rows.Next() {
		var img model.Image
		if err := rows.Scan(&img.ID, &img.FilenameRef, &img.PostID, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, &img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating images: %w", err)
	}

	return images, nil
}

// insertImage writes one image row via the given executor.
func insertImage(ctx context.Context, exec execer, img *model.Image) error {
	query := `
		INSERT INTO images (id, filename_ref, post_id, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := exec.Exec(ctx, query,
		img.ID,
		img.FilenameRef,
		img.PostID,
		img.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}

	return nil
}
