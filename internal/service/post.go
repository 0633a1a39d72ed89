package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/lreview/lreview/internal/model"
	"github.com/lreview/lreview/internal/repository"
	"github.com/lreview/lreview/internal/storage"
)

// Post service errors.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrNotOwner     = errors.New("post belongs to another user")
	ErrEmptyBody    = errors.New("post body is empty")
)

// DefaultPerPage is the page size for post listings.
const DefaultPerPage = 5

// PostService handles journal entry business logic. Every read and
// mutation of a post goes through an ownership check against the
// resolved principal before touching the entity.
type PostService struct {
	repo   *repository.Repository
	store  storage.Store
	logger *slog.Logger
}

// NewPostService creates a new PostService.
func NewPostService(repo *repository.Repository, store storage.Store, logger *slog.Logger) *PostService {
	return &PostService{
		repo:   repo,
		store:  store,
		logger: logger,
	}
}

// Upload is an image file attached to a create request.
type Upload struct {
	Filename string
	File     io.Reader
}

// PostInput defines the writable fields of a journal entry.
type PostInput struct {
	Title         string
	Body          string
	HappenAge     int
	Introspection string
	Emotion       string
	Score         int
}

// Create stores a new post with its images. Files are written to the
// store first; if the database commit fails they are removed again so
// no unreferenced files accumulate.
func (s *PostService) Create(ctx context.Context, ownerID string, input PostInput, uploads []Upload) (*model.Post, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrEmptyBody
	}

	now := time.Now().UTC()
	post := &model.Post{
		ID:            ulid.Make().String(),
		Title:         input.Title,
		Body:          input.Body,
		HappenAge:     input.HappenAge,
		Introspection: input.Introspection,
		Emotion:       input.Emotion,
		Score:         input.Score,
		Timestamp:     now,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var savedRefs []string
	for _, up := range uploads {
		ref, err := s.store.Save(up.Filename, up.File)
		if err != nil {
			s.removeFiles(savedRefs)
			if errors.Is(err, storage.ErrUnsupportedType) {
				return nil, ErrUnsupportedFile
			}
			return nil, fmt.Errorf("store image: %w", err)
		}
		savedRefs = append(savedRefs, ref)

		post.Images = append(post.Images, &model.Image{
			ID:          ulid.Make().String(),
			FilenameRef: ref,
			PostID:      post.ID,
			CreatedAt:   now,
		})
	}

	if err := s.repo.CreatePost(ctx, post); err != nil {
		s.removeFiles(savedRefs)
		return nil, fmt.Errorf("create post: %w", err)
	}

	return post, nil
}

// PostPage is one page of a user's journal.
type PostPage struct {
	Posts   []*model.Post
	Page    int
	PerPage int
	Total   int
}

// Pages returns the number of pages in the listing (at least 1).
func (p *PostPage) Pages() int {
	pages := (p.Total + p.PerPage - 1) / p.PerPage
	if pages < 1 {
		pages = 1
	}
	return pages
}

// List retrieves one page of the owner's posts, newest first.
func (s *PostService) List(ctx context.Context, ownerID string, page int) (*PostPage, error) {
	if page < 1 {
		page = 1
	}

	posts, total, err := s.repo.ListPostsByOwner(ctx, ownerID, page, DefaultPerPage)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	return &PostPage{
		Posts:   posts,
		Page:    page,
		PerPage: DefaultPerPage,
		Total:   total,
	}, nil
}

// Get retrieves a post after verifying the principal owns it.
func (s *PostService) Get(ctx context.Context, principalID, postID string) (*model.Post, error) {
	return s.getOwned(ctx, principalID, postID)
}

// Update rewrites the mutable fields of an owned post.
func (s *PostService) Update(ctx context.Context, principalID, postID string, input PostInput) (*model.Post, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrEmptyBody
	}

	post, err := s.getOwned(ctx, principalID, postID)
	if err != nil {
		return nil, err
	}

	post.Title = input.Title
	post.Body = input.Body
	post.HappenAge = input.HappenAge
	post.Introspection = input.Introspection
	post.Emotion = input.Emotion
	post.Score = input.Score
	post.UpdatedAt = time.Now().UTC()

	if err := s.repo.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("update post: %w", err)
	}

	return post, nil
}

// Delete removes an owned post, its image rows and their backing
// files. File removal happens after the commit; a failed removal is
// logged and does not fail the request.
func (s *PostService) Delete(ctx context.Context, principalID, postID string) error {
	if _, err := s.getOwned(ctx, principalID, postID); err != nil {
		return err
	}

	filenames, err := s.repo.DeletePost(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return ErrPostNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}

	s.removeFiles(filenames)

	return nil
}

// getOwned resolves the post and enforces ownership: absent entities
// yield ErrPostNotFound, foreign ones ErrNotOwner. Callers surface the
// latter as a generic forbidden response.
func (s *PostService) getOwned(ctx context.Context, principalID, postID string) (*model.Post, error) {
	post, err := s.repo.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("get post: %w", err)
	}

	if !post.OwnedBy(principalID) {
		return nil, ErrNotOwner
	}

	return post, nil
}

// removeFiles best-effort deletes stored files.
func (s *PostService) removeFiles(refs []string) {
	for _, ref := range refs {
		if err := s.store.Remove(ref); err != nil {
			s.logger.Warn("failed to remove stored file", "ref", ref, "error", err)
		}
	}
}
