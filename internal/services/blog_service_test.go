package services

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/genderhealth/care-portal/internal/backend"
)

func TestCleanPost(t *testing.T) {
	in := backend.BlogPostInput{
		Title:   "  Safe sex 101 ",
		Content: " body ",
		Tags:    []string{"health, STI", "sti", " ", "Tips"},
	}
	got, err := cleanPost(in)
	if err != nil {
		t.Fatalf("cleanPost: %v", err)
	}
	if got.Title != "Safe sex 101" || got.Content != "body" {
		t.Fatalf("not trimmed: %+v", got)
	}
	if want := []string{"health", "STI", "Tips"}; !reflect.DeepEqual(got.Tags, want) {
		t.Fatalf("tags: got %v want %v", got.Tags, want)
	}

	if _, err := cleanPost(backend.BlogPostInput{Title: "x", Content: "  "}); !errors.Is(err, ErrInvalidPost) {
		t.Fatalf("empty content: %v", err)
	}
}

func TestBlogService_WritesNeedLogin(t *testing.T) {
	f := newFixture(t)
	anon := f.holder(t, "anon", "")
	ctx := context.Background()
	var svc BlogService

	if _, err := svc.Create(ctx, anon, backend.BlogPostInput{Title: "t", Content: "c"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Delete(ctx, anon, 1); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Mine(ctx, anon, backend.MyPostsQuery{}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("mine: %v", err)
	}
	if f.api.total() != 0 {
		t.Fatalf("anonymous writes reached the backend")
	}

	if _, err := svc.Latest(ctx, anon); err != nil {
		t.Fatalf("latest is public: %v", err)
	}
}

func TestBlogService_CreateSendsMultipart(t *testing.T) {
	f := newFixture(t)
	h := f.holder(t, "author", "CONSULTANT")
	var svc BlogService

	_, err := svc.Create(context.Background(), h, backend.BlogPostInput{
		Title:   "Title",
		Content: "Content",
		Tags:    []string{"a", "b"},
		Image:   &backend.File{Name: "cover.png", Content: strings.NewReader("png")},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	posted := f.api.find("POST", "/blog-posts")
	if len(posted) != 1 {
		t.Fatalf("want one POST, got %d", len(posted))
	}
	c := posted[0]
	if !strings.HasPrefix(c.ContentType, "multipart/form-data") {
		t.Fatalf("content type %q", c.ContentType)
	}
	for _, part := range []string{`name="title"`, `name="content"`, `name="tags"`, `name="image"`, "a, b"} {
		if !strings.Contains(c.Body, part) {
			t.Errorf("multipart body lacks %s", part)
		}
	}
}
