// Blog endpoints. Reading is public; writing needs a login and goes to the
// backend as multipart with an optional cover image.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genderhealth/care-portal/internal/backend"
)

// LatestPosts godoc
// @ID          latestPosts
// @Summary     Latest blog posts
// @Tags        Blog
// @Produce     json
// @Success     200 {object} object "Backend reply"
// @Router      /blog/latest [get]
func (h *Handlers) LatestPosts(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	h.forward(c)(h.blog.Latest(c.Request.Context(), s))
}

// SearchPosts godoc
// @ID          searchPosts
// @Summary     Search blog posts
// @Tags        Blog
// @Produce     json
// @Param       title query string false "Title contains"
// @Param       tag   query string false "Tag"
// @Param       sort  query string false "Sort order"
// @Param       page  query int    false "0-based page"
// @Param       size  query int    false "Page size (default 8)"
// @Success     200 {object} object "Backend page"
// @Router      /blog/search [get]
func (h *Handlers) SearchPosts(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	p, size := page(c)
	h.forward(c)(h.blog.Search(c.Request.Context(), s, backend.BlogSearch{
		Title: query(c, "title"),
		Tag:   query(c, "tag"),
		Sort:  query(c, "sort"),
		Page:  p,
		Size:  size,
	}))
}

// GetPost godoc
// @ID          getPost
// @Summary     One blog post
// @Tags        Blog
// @Produce     json
// @Param       id path int true "Post ID"
// @Success     200 {object} object "Backend reply"
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /blog/{id} [get]
func (h *Handlers) GetPost(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	id := pathID(c)
	if id == 0 {
		return
	}
	h.forward(c)(h.blog.Get(c.Request.Context(), s, id))
}

// MyPosts godoc
// @ID          myPosts
// @Summary     The caller's blog posts
// @Tags        Blog
// @Produce     json
// @Param       title   query string false "Title contains"
// @Param       tag     query string false "Tag"
// @Param       sort    query string false "Sort order"
// @Param       orderBy query string false "Sort field"
// @Param       page    query int    false "0-based page"
// @Param       size    query int    false "Page size (default 10)"
// @Success     200 {object} object "Backend page"
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /blog/mine [get]
func (h *Handlers) MyPosts(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	p, size := page(c)
	h.forward(c)(h.blog.Mine(c.Request.Context(), s, backend.MyPostsQuery{
		Title:   query(c, "title"),
		Tag:     query(c, "tag"),
		Sort:    query(c, "sort"),
		OrderBy: query(c, "orderBy"),
		Page:    p,
		Size:    size,
	}))
}

// CreatePost godoc
// @ID          createPost
// @Summary     Publish a blog post
// @Tags        Blog
// @Accept      multipart/form-data
// @Produce     json
// @Param       title   formData string true  "Title"
// @Param       content formData string true  "Content"
// @Param       tags    formData string false "Comma separated tags"
// @Param       image   formData file   false "Cover image"
// @Success     201 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /blog [post]
func (h *Handlers) CreatePost(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	in, closeFn, err := postForm(c)
	if err != nil {
		return
	}
	defer closeFn()
	body, err := h.blog.Create(c.Request.Context(), s, in)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, body)
}

// UpdatePost godoc
// @ID          updatePost
// @Summary     Edit a blog post
// @Tags        Blog
// @Accept      multipart/form-data
// @Produce     json
// @Param       id      path     int    true  "Post ID"
// @Param       title   formData string true  "Title"
// @Param       content formData string true  "Content"
// @Param       tags    formData string false "Comma separated tags"
// @Param       image   formData file   false "Cover image"
// @Success     200 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /blog/{id} [put]
func (h *Handlers) UpdatePost(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	id := pathID(c)
	if id == 0 {
		return
	}
	in, closeFn, err := postForm(c)
	if err != nil {
		return
	}
	defer closeFn()
	h.forward(c)(h.blog.Update(c.Request.Context(), s, id, in))
}

// DeletePost godoc
// @ID          deletePost
// @Summary     Delete a blog post
// @Tags        Blog
// @Param       id path int true "Post ID"
// @Success     204 {string} string "No Content"
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /blog/{id} [delete]
func (h *Handlers) DeletePost(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	id := pathID(c)
	if id == 0 {
		return
	}
	if _, err := h.blog.Delete(c.Request.Context(), s, id); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}

func postForm(c *gin.Context) (backend.BlogPostInput, func(), error) {
	img, closeFn, err := formFile(c, "image", false)
	if err != nil {
		return backend.BlogPostInput{}, closeFn, err
	}
	return backend.BlogPostInput{
		Title:   c.PostForm("title"),
		Content: c.PostForm("content"),
		Tags:    c.PostFormArray("tags"),
		Image:   img,
	}, closeFn, nil
}
