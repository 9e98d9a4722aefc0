package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/session"
)

// BlogService fronts the blog endpoints. Reading is public; writing needs a
// login and the backend enforces authorship.
type BlogService struct{}

// Latest returns the newest posts for the home page.
func (BlogService) Latest(ctx context.Context, h *session.Holder) (json.RawMessage, error) {
	return h.Backend().LatestPosts(ctx)
}

// Search filters public posts by title or tag.
func (BlogService) Search(ctx context.Context, h *session.Holder, q backend.BlogSearch) (json.RawMessage, error) {
	q.Title = strings.TrimSpace(q.Title)
	q.Tag = strings.TrimSpace(q.Tag)
	return h.Backend().SearchPosts(ctx, q)
}

// Get returns one post.
func (BlogService) Get(ctx context.Context, h *session.Holder, id int64) (json.RawMessage, error) {
	return h.Backend().Post(ctx, id)
}

// Mine pages the caller's own posts.
func (BlogService) Mine(ctx context.Context, h *session.Holder, q backend.MyPostsQuery) (json.RawMessage, error) {
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return h.Backend().MyPosts(ctx, q)
}

// Create publishes a post.
func (BlogService) Create(ctx context.Context, h *session.Holder, in backend.BlogPostInput) (json.RawMessage, error) {
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	in, err := cleanPost(in)
	if err != nil {
		return nil, err
	}
	return h.Backend().CreatePost(ctx, in)
}

// Update replaces a post's fields; Image may be nil to keep the old one.
func (BlogService) Update(ctx context.Context, h *session.Holder, id int64, in backend.BlogPostInput) (json.RawMessage, error) {
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	in, err := cleanPost(in)
	if err != nil {
		return nil, err
	}
	return h.Backend().UpdatePost(ctx, id, in)
}

// Delete removes a post.
func (BlogService) Delete(ctx context.Context, h *session.Holder, id int64) (json.RawMessage, error) {
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return h.Backend().DeletePost(ctx, id)
}

// cleanPost trims fields, drops empty and duplicate tags and rejects a post
// without title or content.
func cleanPost(in backend.BlogPostInput) (backend.BlogPostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if in.Title == "" || in.Content == "" {
		return in, ErrInvalidPost
	}
	seen := make(map[string]struct{}, len(in.Tags))
	tags := make([]string, 0, len(in.Tags))
	for _, raw := range in.Tags {
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			k := strings.ToLower(t)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			tags = append(tags, t)
		}
	}
	in.Tags = tags
	return in, nil
}
