package backend

import (
	"context"
	"encoding/json"
	"net/http"
)

// RegisterRoleID is the role assigned to self-registered accounts (customer).
const RegisterRoleID = 4

// LoginResponse is the part of the login reply the portal consumes.
type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// RegisterRequest is the account creation payload. BirthDate is YYYY-MM-DD.
type RegisterRequest struct {
	FullName  string `json:"fullName"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birthDate,omitempty"`
	Address   string `json:"address"`
	Email     string `json:"email"`
	UserName  string `json:"userName"`
	Password  string `json:"password"`
	RoleID    int    `json:"roleId"`
}

// ProfileUpdate is the payload of PUT /profile/update.
type ProfileUpdate struct {
	FullName  string `json:"fullName"`
	Phone     string `json:"phone"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birthDate"`
	Address   string `json:"address"`
	Email     string `json:"email"`
}

// Reply keeps the status next to the body for endpoints whose success is
// judged by the exact status code.
type Reply struct {
	Status int
	Body   json.RawMessage
}

// Login posts credentials. A 2xx reply without a token is not an error here;
// the caller decides.
func (s *Session) Login(ctx context.Context, usernameOrEmail, password string) (*LoginResponse, error) {
	res, err := s.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/login",
		path:   "/auth/login",
		json: map[string]string{
			"usernameOrEmail": usernameOrEmail,
			"password":        password,
		},
	})
	if err != nil {
		return nil, err
	}
	var out LoginResponse
	if len(res.Body) > 0 {
		// A body that is not an object simply yields no token.
		_ = json.Unmarshal(res.Body, &out)
	}
	return &out, nil
}

// Register creates a customer account. RoleID is forced to RegisterRoleID.
func (s *Session) Register(ctx context.Context, in RegisterRequest) (*Reply, error) {
	in.RoleID = RegisterRoleID
	res, err := s.do(ctx, request{
		method: http.MethodPost,
		route:  "/auth/register",
		path:   "/auth/register",
		json:   in,
	})
	if err != nil {
		return nil, err
	}
	return &Reply{Status: res.Status, Body: asJSON(res.Body)}, nil
}

// Me fetches the current user's profile.
func (s *Session) Me(ctx context.Context) (json.RawMessage, error) {
	return s.raw(ctx, request{method: http.MethodGet, route: "/users/me", path: "/users/me"})
}

func (s *Session) ForgotPassword(ctx context.Context, usernameOrEmail string) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPost,
		route:  "/auth/forgot-password",
		path:   "/auth/forgot-password",
		json:   map[string]string{"usernameOrEmail": usernameOrEmail},
	})
}

func (s *Session) VerifyOTP(ctx context.Context, usernameOrEmail, otp string) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPost,
		route:  "/auth/verify-otp",
		path:   "/auth/verify-otp",
		json:   map[string]string{"usernameOrEmail": usernameOrEmail, "otp": otp},
	})
}

func (s *Session) ResetPassword(ctx context.Context, usernameOrEmail, newPassword string) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPost,
		route:  "/auth/reset-password",
		path:   "/auth/reset-password",
		json:   map[string]string{"usernameOrEmail": usernameOrEmail, "newPassword": newPassword},
	})
}

func (s *Session) UpdateProfile(ctx context.Context, in ProfileUpdate) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPut,
		route:  "/profile/update",
		path:   "/profile/update",
		json:   in,
	})
}

// UploadAvatar sends the image as the multipart part "file".
func (s *Session) UploadAvatar(ctx context.Context, f *File) (json.RawMessage, error) {
	return s.raw(ctx, request{
		method: http.MethodPut,
		route:  "/profile/me/avatar",
		path:   "/profile/me/avatar",
		form:   (&multipartForm{}).addFile("file", f),
	})
}
