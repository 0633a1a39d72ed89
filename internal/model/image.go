// Package model defines domain entities for the application.
package model

import "time"

// Image is a stored file attached to a post. FilenameRef is the name of
// the backing file inside the upload directory, not a full path.
type Image struct {
	ID          string    `json:"id"`
	FilenameRef string    `json:"filename"`
	PostID      string    `json:"post_id"`
	CreatedAt   time.Time `json:"created_at"`
}
