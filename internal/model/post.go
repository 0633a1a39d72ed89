// Package model defines domain entities for the application.
package model

import "time"

// Post is a single journal entry. A post belongs to exactly one user and
// owns its attached images; images are removed together with the post.
type Post struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	HappenAge     int       `json:"happen_age"`
	Introspection string    `json:"introspection"`
	Emotion       string    `json:"emotion"`
	Score         int       `json:"score"`
	Timestamp     time.Time `json:"timestamp"`
	OwnerID       string    `json:"owner_id"`
	Images        []*Image  `json:"images,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// OwnedBy reports whether the post belongs to the given user.
func (p *Post) OwnedBy(userID string) bool {
	return p.OwnerID == userID
}
