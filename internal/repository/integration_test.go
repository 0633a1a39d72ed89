package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lreview/lreview/internal/model"
	"github.com/lreview/lreview/internal/repository"
	"github.com/lreview/lreview/internal/testutil"
)

// setupRepo connects to the test database, serializes against other
// integration tests and resets the schema. Skips when DATABASE_URL is
// not set.
func setupRepo(t *testing.T) (*repository.Repository, context.Context) {
	t.Helper()

	url := testutil.RequireEnv(t, "DATABASE_URL")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	repo, err := repository.New(ctx, url)
	if err != nil {
		t.Fatalf("connect to database: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		if err := unlock(); err != nil {
			t.Errorf("release db lock: %v", err)
		}
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return repo, ctx
}

func TestCreateUser_Roundtrip(t *testing.T) {
	repo, ctx := setupRepo(t)

	user := testutil.NewTestUser(t, testutil.UniqueName("alice"))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	for _, lookup := range []struct {
		name string
		get  func() (*model.User, error)
	}{
		{"by id", func() (*model.User, error) { return repo.GetUserByID(ctx, user.ID) }},
		{"by email", func() (*model.User, error) { return repo.GetUserByEmail(ctx, user.Email) }},
		{"by username", func() (*model.User, error) { return repo.GetUserByUsername(ctx, user.Username) }},
	} {
		got, err := lookup.get()
		if err != nil {
			t.Fatalf("lookup %s failed: %v", lookup.name, err)
		}
		if got.ID != user.ID || got.Email != user.Email || got.Username != user.Username {
			t.Errorf("lookup %s: mismatch: %+v", lookup.name, got)
		}
	}

	if _, err := repo.GetUserByID(ctx, "missing"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateUser_Duplicates(t *testing.T) {
	repo, ctx := setupRepo(t)

	user := testutil.NewTestUser(t, testutil.UniqueName("bob"))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	sameEmail := testutil.NewTestUser(t, testutil.UniqueName("other"))
	sameEmail.Email = user.Email
	if err := repo.CreateUser(ctx, sameEmail); !errors.Is(err, repository.ErrEmailExists) {
		t.Errorf("expected ErrEmailExists, got %v", err)
	}

	sameUsername := testutil.NewTestUser(t, testutil.UniqueName("another"))
	sameUsername.Username = user.Username
	if err := repo.CreateUser(ctx, sameUsername); !errors.Is(err, repository.ErrUsernameExists) {
		t.Errorf("expected ErrUsernameExists, got %v", err)
	}
}

func TestCreateUser_ConcurrentDuplicate(t *testing.T) {
	repo, ctx := setupRepo(t)

	username := testutil.UniqueName("racer")

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := testutil.NewTestUser(t, username)
			errs[i] = repo.CreateUser(ctx, user)
		}(i)
	}
	wg.Wait()

	// The unique constraints decide the race: exactly one insert wins.
	var successes int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, repository.ErrEmailExists), errors.Is(err, repository.ErrUsernameExists):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly one successful insert, got %d", successes)
	}
}

func TestUpdateUserProfile(t *testing.T) {
	repo, ctx := setupRepo(t)

	user := testutil.NewTestUser(t, testutil.UniqueName("carol"))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	user.Email = testutil.UniqueName("carol-new") + "@example.com"
	user.Name = "Carol Renamed"
	user.Birthday = "1999-12-31"
	if err := repo.UpdateUserProfile(ctx, user); err != nil {
		t.Fatalf("UpdateUserProfile failed: %v", err)
	}

	got, err := repo.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Email != user.Email || got.Name != "Carol Renamed" || got.Birthday != "1999-12-31" {
		t.Errorf("profile not updated: %+v", got)
	}

	// Updating a missing user reports not found.
	ghost := testutil.NewTestUser(t, testutil.UniqueName("ghost"))
	if err := repo.UpdateUserProfile(ctx, ghost); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateUserAvatar_ReturnsPrevious(t *testing.T) {
	repo, ctx := setupRepo(t)

	user := testutil.NewTestUser(t, testutil.UniqueName("dave"))
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	previous, err := repo.UpdateUserAvatar(ctx, user.ID, "first.png")
	if err != nil {
		t.Fatalf("UpdateUserAvatar failed: %v", err)
	}
	if previous != "" {
		t.Errorf("expected empty previous ref, got %q", previous)
	}

	previous, err = repo.UpdateUserAvatar(ctx, user.ID, "second.png")
	if err != nil {
		t.Fatalf("UpdateUserAvatar failed: %v", err)
	}
	if previous != "first.png" {
		t.Errorf("expected first.png, got %q", previous)
	}

	if _, err := repo.UpdateUserAvatar(ctx, "missing", "x.png"); !errors.Is(err, repository.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreatePost_WithImages(t *testing.T) {
	repo, ctx := setupRepo(t)

	owner := testutil.NewTestUser(t, testutil.UniqueName("erin"))
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	post := testutil.NewTestPost(t, owner.ID)
	post.Images = []*model.Image{
		testutil.NewTestImage(t, post.ID),
		testutil.NewTestImage(t, post.ID),
	}
	if err := repo.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	got, err := repo.GetPostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPostByID failed: %v", err)
	}
	if got.Body != post.Body || got.OwnerID != owner.ID {
		t.Errorf("post mismatch: %+v", got)
	}
	if len(got.Images) != 2 {
		t.Errorf("expected 2 images, got %d", len(got.Images))
	}

	if _, err := repo.GetPostByID(ctx, "missing"); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
}

func TestListPostsByOwner_Pagination(t *testing.T) {
	repo, ctx := setupRepo(t)

	owner := testutil.NewTestUser(t, testutil.UniqueName("frank"))
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	stranger := testutil.NewTestUser(t, testutil.UniqueName("greta"))
	if err := repo.CreateUser(ctx, stranger); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 7; i++ {
		post := testutil.NewTestPost(t, owner.ID)
		post.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := repo.CreatePost(ctx, post); err != nil {
			t.Fatalf("CreatePost failed: %v", err)
		}
	}
	// A foreign post must never leak into the owner's listing.
	foreign := testutil.NewTestPost(t, stranger.ID)
	if err := repo.CreatePost(ctx, foreign); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	page1, total, err := repo.ListPostsByOwner(ctx, owner.ID, 1, 5)
	if err != nil {
		t.Fatalf("ListPostsByOwner failed: %v", err)
	}
	if total != 7 {
		t.Errorf("expected total 7, got %d", total)
	}
	if len(page1) != 5 {
		t.Fatalf("expected 5 posts on page 1, got %d", len(page1))
	}

	// Newest first.
	for i := 1; i < len(page1); i++ {
		if page1[i].Timestamp.After(page1[i-1].Timestamp) {
			t.Errorf("posts not ordered newest first at index %d", i)
		}
	}

	page2, _, err := repo.ListPostsByOwner(ctx, owner.ID, 2, 5)
	if err != nil {
		t.Fatalf("ListPostsByOwner failed: %v", err)
	}
	if len(page2) != 2 {
		t.Errorf("expected 2 posts on page 2, got %d", len(page2))
	}

	for _, p := range append(page1, page2...) {
		if p.OwnerID != owner.ID {
			t.Errorf("foreign post leaked into listing: %s", p.ID)
		}
	}
}

func TestUpdatePost(t *testing.T) {
	repo, ctx := setupRepo(t)

	owner := testutil.NewTestUser(t, testutil.UniqueName("hana"))
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	post := testutil.NewTestPost(t, owner.ID)
	if err := repo.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	post.Title = "Rewritten"
	post.Body = "Second thoughts."
	post.Score = 3
	if err := repo.UpdatePost(ctx, post); err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}

	got, err := repo.GetPostByID(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPostByID failed: %v", err)
	}
	if got.Title != "Rewritten" || got.Body != "Second thoughts." || got.Score != 3 {
		t.Errorf("post not updated: %+v", got)
	}

	missing := testutil.NewTestPost(t, owner.ID)
	if err := repo.UpdatePost(ctx, missing); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("expected ErrPostNotFound, got %v", err)
	}
}

func TestDeletePost_ReturnsImageFilenames(t *testing.T) {
	repo, ctx := setupRepo(t)

	owner := testutil.NewTestUser(t, testutil.UniqueName("iris"))
	if err := repo.CreateUser(ctx, owner); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	post := testutil.NewTestPost(t, owner.ID)
	img1 := testutil.NewTestImage(t, post.ID)
	img2 := testutil.NewTestImage(t, post.ID)
	post.Images = []*model.Image{img1, img2}
	if err := repo.CreatePost(ctx, post); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	filenames, err := repo.DeletePost(ctx, post.ID)
	if err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}

	want := map[string]bool{img1.FilenameRef: true, img2.FilenameRef: true}
	if len(filenames) != 2 {
		t.Fatalf("expected 2 filenames, got %d", len(filenames))
	}
	for _, name := range filenames {
		if !want[name] {
			t.Errorf("unexpected filename: %q", name)
		}
	}

	if _, err := repo.GetPostByID(ctx, post.ID); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("post should be gone, got %v", err)
	}

	if _, err := repo.DeletePost(ctx, post.ID); !errors.Is(err, repository.ErrPostNotFound) {
		t.Errorf("second delete should report not found, got %v", err)
	}
}
