// Account endpoints: login, logout, registration, password reset and the
// caller's profile. All of them act on the portal session resolved by the
// Sessions middleware; the bearer token never leaves the server.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/i18n"
	"github.com/genderhealth/care-portal/internal/session"
)

// LoginRequest is the login form.
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" binding:"required" example:"lan.nguyen"`
	Password        string `json:"password" binding:"required" example:"s3cret!"`
}

// AccountRequest names an account for the password reset flow.
type AccountRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" example:"lan@example.com"`
}

// VerifyOTPRequest carries the one-time code from the reset e-mail.
type VerifyOTPRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" example:"lan@example.com"`
	OTP             string `json:"otp" example:"482913"`
}

// ResetPasswordRequest sets a new password after a verified OTP.
type ResetPasswordRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail" example:"lan@example.com"`
	NewPassword     string `json:"newPassword" example:"n3w-s3cret"`
	ConfirmPassword string `json:"confirmPassword" example:"n3w-s3cret"`
}

// ProfileResponse is the updated cached profile.
type ProfileResponse struct {
	Message string          `json:"message" example:"profile updated"`
	Data    json.RawMessage `json:"data" swaggertype:"object"`
}

// Login godoc
// @ID          login
// @Summary     Log in
// @Description Exchanges credentials for a backend token held in the portal session. Logging in while already authenticated is rejected.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body body handlers.LoginRequest true "Credentials"
// @Success     200 {object} session.LoginResult
// @Failure     400 {object} handlers.ErrorResponse "Missing field"
// @Failure     401 {object} handlers.ErrorResponse "Invalid credentials"
// @Failure     409 {object} handlers.ErrorResponse "Already logged in"
// @Failure     502 {object} handlers.ErrorResponse "Backend failed or unreachable"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, tr(c, i18n.FieldRequired, "usernameOrEmail/password"))
		return
	}
	res, err := s.Login(c.Request.Context(), req.UsernameOrEmail, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	if !res.Success {
		// only a backend rejection of the request speaks about the credentials
		if res.UpstreamStatus >= 400 && res.UpstreamStatus < 500 {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, res.Message)
			return
		}
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, res.Message)
		return
	}
	ok(c, http.StatusOK, res)
}

// Logout godoc
// @ID          logout
// @Summary     Log out
// @Description Forgets the token and cached profile of the portal session. Pending payments are kept.
// @Tags        Auth
// @Produce     json
// @Success     200 {object} handlers.MessageResponse
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	msg, err := s.Logout(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: msg})
}

// Register godoc
// @ID          register
// @Summary     Create a customer account
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body body session.RegisterInput true "Sign-up form"
// @Success     201 {object} session.Result
// @Failure     400 {object} handlers.ErrorResponse "Validation failed or rejected by the backend"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	var in session.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	res, err := s.Register(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	if !res.Success {
		fail(c, http.StatusBadRequest, ErrCodeRejected, res.Message)
		return
	}
	ok(c, http.StatusCreated, res)
}

// Me godoc
// @ID          me
// @Summary     Current user profile
// @Description Fetches the profile from the backend and merges it over the cached one, keeping the role recorded at login.
// @Tags        Auth
// @Produce     json
// @Success     200 {object} session.ProfileResult
// @Failure     401 {object} handlers.ErrorResponse "Not logged in"
// @Failure     502 {object} handlers.ErrorResponse "Profile could not be loaded"
// @Router      /auth/me [get]
func (h *Handlers) Me(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	res := s.RefreshProfile(c.Request.Context())
	if !res.Success {
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, res.Message)
		return
	}
	ok(c, http.StatusOK, res)
}

// ForgotPassword godoc
// @ID          forgotPassword
// @Summary     Start a password reset
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body body handlers.AccountRequest true "Account"
// @Success     200 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse
// @Router      /auth/forgot-password [post]
func (h *Handlers) ForgotPassword(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	var req AccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.forward(c)(s.ForgotPassword(c.Request.Context(), req.UsernameOrEmail))
}

// VerifyOTP godoc
// @ID          verifyOtp
// @Summary     Verify a password reset code
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body body handlers.VerifyOTPRequest true "Account and code"
// @Success     200 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse
// @Router      /auth/verify-otp [post]
func (h *Handlers) VerifyOTP(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.forward(c)(s.VerifyOTP(c.Request.Context(), req.UsernameOrEmail, req.OTP))
}

// ResetPassword godoc
// @ID          resetPassword
// @Summary     Set a new password
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body body handlers.ResetPasswordRequest true "New password"
// @Success     200 {object} object "Backend reply"
// @Failure     400 {object} handlers.ErrorResponse
// @Router      /auth/reset-password [post]
func (h *Handlers) ResetPassword(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.forward(c)(s.ResetPassword(c.Request.Context(), req.UsernameOrEmail, req.NewPassword, req.ConfirmPassword))
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Update the caller's profile
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body body backend.ProfileUpdate true "Editable profile fields"
// @Success     200 {object} handlers.ProfileResponse
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /profile [put]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	var in backend.ProfileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	user, err := s.UpdateProfile(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ProfileResponse{Message: tr(c, i18n.ProfileUpdated), Data: user})
}

// UploadAvatar godoc
// @ID          uploadAvatar
// @Summary     Replace the profile picture
// @Tags        Auth
// @Accept      multipart/form-data
// @Produce     json
// @Param       file formData file true "Image"
// @Success     200 {object} session.ProfileResult
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     401 {object} handlers.ErrorResponse
// @Router      /profile/avatar [put]
func (h *Handlers) UploadAvatar(c *gin.Context) {
	s := holder(c)
	if s == nil {
		return
	}
	f, closeFn, err := formFile(c, "file", true)
	if err != nil {
		return
	}
	defer closeFn()
	res, err := s.UploadAvatar(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, res)
}

// forward writes a raw backend reply, or the mapped error.
func (h *Handlers) forward(c *gin.Context) func(json.RawMessage, error) {
	return func(body json.RawMessage, err error) {
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, http.StatusOK, body)
	}
}

// formFile opens an uploaded part. When required is false a missing part
// yields a nil file. On error the response has already been written. The
// returned close func is always safe to call.
func formFile(c *gin.Context, field string, required bool) (*backend.File, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if !required && errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		fail(c, http.StatusBadRequest, ErrCodeValidation, tr(c, i18n.FieldRequired, field))
		return nil, noop, err
	}
	src, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable upload")
		return nil, noop, err
	}
	return &backend.File{Name: fh.Filename, Content: src}, func() { _ = src.Close() }, nil
}
