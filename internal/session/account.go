package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/genderhealth/care-portal/internal/backend"
	"github.com/genderhealth/care-portal/internal/i18n"
)

const dateLayout = "2006-01-02"

// RegisterInput is the sign-up form. BirthDate is YYYY-MM-DD.
type RegisterInput struct {
	Username        string `json:"username"`
	FullName        string `json:"fullName"`
	Phone           string `json:"phone"`
	BirthDate       string `json:"birthDate"`
	Gender          string `json:"gender"`
	Email           string `json:"email"`
	Address         string `json:"address"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

var genders = map[string]string{"male": "Male", "female": "Female", "other": "Other"}

// Validate checks the form before anything is sent. Address is optional.
func (in *RegisterInput) Validate(ctx context.Context, now time.Time) error {
	for _, f := range []struct{ name, val string }{
		{"username", in.Username},
		{"fullName", in.FullName},
		{"phone", in.Phone},
		{"birthDate", in.BirthDate},
		{"gender", in.Gender},
		{"email", in.Email},
		{"password", in.Password},
		{"confirmPassword", in.ConfirmPassword},
	} {
		if strings.TrimSpace(f.val) == "" {
			return required(ctx, f.name)
		}
	}
	if in.Password != in.ConfirmPassword {
		return &ValidationError{Field: "confirmPassword", Message: i18n.T(ctx, i18n.PasswordMismatch)}
	}
	g, ok := genders[strings.ToLower(strings.TrimSpace(in.Gender))]
	if !ok {
		return &ValidationError{Field: "gender", Message: i18n.T(ctx, i18n.FieldRequired, "gender")}
	}
	in.Gender = g
	bd, err := time.Parse(dateLayout, strings.TrimSpace(in.BirthDate))
	if err != nil || !bd.Before(now) {
		return &ValidationError{Field: "birthDate", Message: i18n.T(ctx, i18n.FieldRequired, "birthDate")}
	}
	return nil
}

func required(ctx context.Context, field string) error {
	return &ValidationError{Field: field, Message: i18n.T(ctx, i18n.FieldRequired, field)}
}

// Register validates the form and creates a customer account. Success is
// signalled only by HTTP 200. Validation failures return a *ValidationError
// and never reach the backend.
func (h *Holder) Register(ctx context.Context, in RegisterInput) (Result, error) {
	if err := in.Validate(ctx, h.m.now()); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return Result{Message: ve.Message}, err
		}
		return Result{Message: i18n.T(ctx, i18n.RegisterFailed)}, err
	}
	rep, err := h.m.Backend.For(backend.Anonymous).Register(ctx, backend.RegisterRequest{
		FullName:  strings.TrimSpace(in.FullName),
		Phone:     strings.TrimSpace(in.Phone),
		Gender:    in.Gender,
		BirthDate: strings.TrimSpace(in.BirthDate),
		Address:   strings.TrimSpace(in.Address),
		Email:     strings.TrimSpace(in.Email),
		UserName:  strings.TrimSpace(in.Username),
		Password:  in.Password,
	})
	if err != nil {
		return Result{Message: backend.MessageOf(err, i18n.T(ctx, i18n.RegisterFailed))}, nil
	}
	if rep.Status != 200 {
		return Result{Message: i18n.T(ctx, i18n.RegisterFailed)}, nil
	}
	return Result{Success: true, Message: i18n.T(ctx, i18n.RegisterSuccess)}, nil
}

// ForgotPassword starts the OTP flow for an account.
func (h *Holder) ForgotPassword(ctx context.Context, usernameOrEmail string) (json.RawMessage, error) {
	if strings.TrimSpace(usernameOrEmail) == "" {
		return nil, required(ctx, "usernameOrEmail")
	}
	return h.m.Backend.For(backend.Anonymous).ForgotPassword(ctx, strings.TrimSpace(usernameOrEmail))
}

// VerifyOTP checks the one-time code sent by ForgotPassword.
func (h *Holder) VerifyOTP(ctx context.Context, usernameOrEmail, otp string) (json.RawMessage, error) {
	if strings.TrimSpace(usernameOrEmail) == "" {
		return nil, required(ctx, "usernameOrEmail")
	}
	if strings.TrimSpace(otp) == "" {
		return nil, required(ctx, "otp")
	}
	return h.m.Backend.For(backend.Anonymous).VerifyOTP(ctx, strings.TrimSpace(usernameOrEmail), strings.TrimSpace(otp))
}

// ResetPassword sets a new password after a verified OTP.
func (h *Holder) ResetPassword(ctx context.Context, usernameOrEmail, newPassword, confirm string) (json.RawMessage, error) {
	if strings.TrimSpace(usernameOrEmail) == "" {
		return nil, required(ctx, "usernameOrEmail")
	}
	if newPassword == "" {
		return nil, required(ctx, "newPassword")
	}
	if newPassword != confirm {
		return nil, &ValidationError{Field: "confirmPassword", Message: i18n.T(ctx, i18n.PasswordMismatch)}
	}
	return h.m.Backend.For(backend.Anonymous).ResetPassword(ctx, strings.TrimSpace(usernameOrEmail), newPassword)
}

// UpdateProfile saves the editable profile fields and mirrors them into the
// cached profile.
func (h *Holder) UpdateProfile(ctx context.Context, in backend.ProfileUpdate) (json.RawMessage, error) {
	if !h.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	for _, f := range []struct{ name, val string }{
		{"fullName", in.FullName},
		{"phone", in.Phone},
		{"email", in.Email},
		{"birthDate", in.BirthDate},
	} {
		if strings.TrimSpace(f.val) == "" {
			return nil, required(ctx, f.name)
		}
	}
	if _, err := time.Parse(dateLayout, strings.TrimSpace(in.BirthDate)); err != nil {
		return nil, &ValidationError{Field: "birthDate", Message: i18n.T(ctx, i18n.FieldRequired, "birthDate")}
	}
	if _, err := h.Backend().UpdateProfile(ctx, in); err != nil {
		return nil, err
	}
	return h.UpdateUser(ctx, map[string]any{
		"fullName":  in.FullName,
		"phone":     in.Phone,
		"gender":    in.Gender,
		"birthDate": in.BirthDate,
		"address":   in.Address,
		"email":     in.Email,
	})
}

// UploadAvatar replaces the profile picture and refreshes the cached profile
// so the new avatar URL is picked up.
func (h *Holder) UploadAvatar(ctx context.Context, f *backend.File) (ProfileResult, error) {
	if !h.Authenticated() {
		return ProfileResult{}, ErrNotAuthenticated
	}
	if f == nil || f.Content == nil {
		return ProfileResult{}, required(ctx, "file")
	}
	if _, err := h.Backend().UploadAvatar(ctx, f); err != nil {
		return ProfileResult{}, err
	}
	return h.RefreshProfile(ctx), nil
}
