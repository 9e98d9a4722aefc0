package backend

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parts decodes a captured multipart body into name -> (filename, content).
func parts(t *testing.T, c captured) map[string][2]string {
	t.Helper()
	mt, params, err := mime.ParseMediaType(c.CType)
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mt)

	out := map[string][2]string{}
	r := multipart.NewReader(bytes.NewReader(c.Body), params["boundary"])
	for {
		p, err := r.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		b, _ := io.ReadAll(p)
		out[p.FormName()] = [2]string{p.FileName(), string(b)}
	}
	return out
}

func TestCreatePost_MultipartWithJoinedTags(t *testing.T) {
	f := newFake(t, okJSON(`{"id":3}`))
	s := New(f.srv.URL, f.srv.Client()).For(TokenFunc(func() string { return "t" }))

	_, err := s.CreatePost(context.Background(), BlogPostInput{
		Title:   "PrEP",
		Content: "body",
		Tags:    []string{"hiv", "prevention"},
		Image:   &File{Name: "cover.png", Content: bytes.NewBufferString("PNG")},
	})
	require.NoError(t, err)

	got := f.last(t)
	assert.Equal(t, http.MethodPost, got.Method)
	p := parts(t, got)
	assert.Equal(t, "PrEP", p["title"][1])
	assert.Equal(t, "hiv, prevention", p["tags"][1])
	assert.Equal(t, "cover.png", p["image"][0])
	assert.Equal(t, "PNG", p["image"][1])
}

func TestUpdatePost_WithoutImageOmitsPart(t *testing.T) {
	f := newFake(t, okJSON(`{}`))
	s := New(f.srv.URL, f.srv.Client()).For(Anonymous)

	_, err := s.UpdatePost(context.Background(), 5, BlogPostInput{Title: "t", Content: "c"})
	require.NoError(t, err)

	got := f.last(t)
	assert.Equal(t, http.MethodPut, got.Method)
	assert.Equal(t, "/blog-posts/5", got.Path)
	p := parts(t, got)
	_, hasImage := p["image"]
	assert.False(t, hasImage)
}

func TestUploads_UseExpectedPartNames(t *testing.T) {
	f := newFake(t, okJSON(`{}`))
	s := New(f.srv.URL, f.srv.Client()).For(Anonymous)
	ctx := context.Background()

	_, err := s.UploadAvatar(ctx, &File{Name: "me.jpg", Content: bytes.NewBufferString("JPG")})
	require.NoError(t, err)
	assert.Equal(t, "/profile/me/avatar", f.last(t).Path)
	assert.Equal(t, "JPG", parts(t, f.last(t))["file"][1])

	_, err = s.UploadResultPDF(ctx, 9, &File{Name: "r.pdf", Content: bytes.NewBufferString("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, "/stis-results/upload-pdf/9", f.last(t).Path)
	assert.Equal(t, "%PDF", parts(t, f.last(t))["pdfFile"][1])
}
