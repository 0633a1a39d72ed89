package dto

import (
	"fmt"
	"time"

	"github.com/lreview/lreview/internal/model"
)

// PostRequest is the body for creating or rewriting a journal entry.
// Multipart create requests carry the same fields as form values.
type PostRequest struct {
	Title         string `json:"title"`
	Body          string `json:"body"`
	HappenAge     int    `json:"happen_age"`
	Introspection string `json:"introspection"`
	Emotion       string `json:"emotion"`
	Score         int    `json:"score"`
}

// PostUserRef is the owner sub-object embedded in post responses.
type PostUserRef struct {
	Username string `json:"username"`
	Kind     string `json:"kind"`
}

// PostResponse represents a journal entry in API responses.
type PostResponse struct {
	ID            string      `json:"id"`
	Kind          string      `json:"kind"`
	Title         string      `json:"title"`
	Body          string      `json:"body"`
	HappenAge     int         `json:"happen_age"`
	Introspection string      `json:"introspection"`
	Emotion       string      `json:"emotion"`
	Score         int         `json:"score"`
	Timestamp     time.Time   `json:"timestamp"`
	User          PostUserRef `json:"user"`
	ImageURLs     []string    `json:"image_urls,omitempty"`
}

// PostCollectionResponse is one page of a user's journal with absolute
// navigation links.
type PostCollectionResponse struct {
	Self  string         `json:"self"`
	Kind  string         `json:"kind"`
	Posts []PostResponse `json:"posts"`
	First string         `json:"first"`
	Last  string         `json:"last"`
	Prev  string         `json:"prev,omitempty"`
	Next  string         `json:"next,omitempty"`
	Count int            `json:"count"`
}

// ToUserResponse converts a User model to its wire representation.
func ToUserResponse(user *model.User, baseURL string) *UserResponse {
	resp := &UserResponse{
		ID:       user.ID,
		Kind:     "User",
		Email:    user.Email,
		Username: user.Username,
		Name:     user.Name,
		Birthday: user.Birthday,
	}
	if user.AvatarRef != "" {
		resp.AvatarURL = UploadURL(baseURL, user.AvatarRef)
	}
	return resp
}

// ToPostResponse converts a Post model to its wire representation.
func ToPostResponse(post *model.Post, username, baseURL string) *PostResponse {
	resp := &PostResponse{
		ID:            post.ID,
		Kind:          "Post",
		Title:         post.Title,
		Body:          post.Body,
		HappenAge:     post.HappenAge,
		Introspection: post.Introspection,
		Emotion:       post.Emotion,
		Score:         post.Score,
		Timestamp:     post.Timestamp,
		User: PostUserRef{
			Username: username,
			Kind:     "User",
		},
	}
	for _, img := range post.Images {
		resp.ImageURLs = append(resp.ImageURLs, UploadURL(baseURL, img.FilenameRef))
	}
	return resp
}

// ToPostCollectionResponse builds a page response with navigation links.
func ToPostCollectionResponse(posts []*model.Post, username, baseURL string, page, pages, count int) *PostCollectionResponse {
	resp := &PostCollectionResponse{
		Self:  pageURL(baseURL, page),
		Kind:  "PostCollection",
		Posts: make([]PostResponse, 0, len(posts)),
		First: pageURL(baseURL, 1),
		Last:  pageURL(baseURL, pages),
		Count: count,
	}

	if page > 1 {
		resp.Prev = pageURL(baseURL, page-1)
	}
	if page < pages {
		resp.Next = pageURL(baseURL, page+1)
	}

	for _, post := range posts {
		resp.Posts = append(resp.Posts, *ToPostResponse(post, username, baseURL))
	}

	return resp
}

// UploadURL returns the absolute URL of a stored file.
func UploadURL(baseURL, ref string) string {
	return baseURL + "/uploads/" + ref
}

func pageURL(baseURL string, page int) string {
	return fmt.Sprintf("%s/api/v1/user/posts?page=%d", baseURL, page)
}
