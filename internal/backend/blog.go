package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// BlogSearch filters the public blog search. Size defaults to 8.
type BlogSearch struct {
	Title string
	Tag   string
	Sort  string
	Page  int
	Size  int
}

// MyPostsQuery filters the author's own posts. Size defaults to 10.
type MyPostsQuery struct {
	Title   string
	Tag     string
	Sort    string
	OrderBy string
	Page    int
	Size    int
}

// BlogPostInput is sent as multipart; Tags are joined with ", ".
type BlogPostInput struct {
	Title   string
	Content string
	Tags    []string
	Image   *File
}

func (in BlogPostInput) form() *multipartForm {
	return (&multipartForm{}).
		add("title", in.Title).
		add("content", in.Content).
		add("tags", strings.Join(in.Tags, ", ")).
		addFile("image", in.Image)
}

func (s *Session) LatestPosts(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, request{method: http.MethodGet, route: "/blog-posts/latest", path: "/blog-posts/latest"})
}

func (s *Session) SearchPosts(ctx context.Context, q BlogSearch) (json.RawMessage, error) {
	if q.Size <= 0 {
		q.Size = 8
	}
	return s.raw(ctx, request{
		method: http.MethodGet,
		route:  "/blog-posts/search",
		path:   "/blog-posts/search",
		query:  pageQuery(q.Page, q.Size, "title", q.Title, "tag", q.Tag, "sort", q.Sort),
	})
}

func (s *Session) Post(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodGet,
		route:  "/blog-posts/{id}",
		path:   idPath("/blog-posts/%d", id),
	})
}

func (s *Session) CreatePost(ctx context.Context, in BlogPostInput) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPost,
		route:  "/blog-posts",
		path:   "/blog-posts",
		form:   in.form(),
	})
}

func (s *Session) MyPosts(ctx context.Context, q MyPostsQuery) (json.RawMessage, error) {
	if q.Size <= 0 {
		q.Size = 10
	}
	return s.raw(ctx, request{
		method: http.MethodGet,
		route:  "/blog-posts/my-posts",
		path:   "/blog-posts/my-posts",
		query:  pageQuery(q.Page, q.Size, "title", q.Title, "tag", q.Tag, "sort", q.Sort, "orderBy", q.OrderBy),
	})
}

func (s *Session) UpdatePost(ctx context.Context, id int64, in BlogPostInput) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPut,
		route:  "/blog-posts/{id}",
		path:   idPath("/blog-posts/%d", id),
		form:   in.form(),
	})
}

func (s *Session) DeletePost(ctx context.Context, id int64) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodDelete,
		route:  "/blog-posts/{id}",
		path:   idPath("/blog-posts/%d", id),
	})
}
