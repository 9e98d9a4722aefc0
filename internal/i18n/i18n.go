// Package i18n holds the user-facing notification texts in Vietnamese and
// English. Handlers pick a printer from Accept-Language and store it on the
// request context; deeper layers call T(ctx, key) without knowing the locale.
package i18n

import (
	"context"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys.
const (
	LoginSuccess        = "login.success"
	InvalidCredentials  = "login.invalid_credentials"
	ServerError         = "error.server"
	LoginFailed         = "login.failed"
	AlreadyLoggedIn     = "login.already_authenticated"
	NotLoggedIn         = "auth.required"
	Forbidden           = "auth.forbidden"
	LogoutSuccess       = "logout.success"
	RegisterSuccess     = "register.success"
	RegisterFailed      = "register.failed"
	PasswordMismatch    = "register.password_mismatch"
	FieldRequired       = "validation.required"
	ProfileEmpty        = "profile.empty"
	ProfileFailed       = "profile.failed"
	ProfileUpdated      = "profile.updated"
	PaymentSucceeded    = "payment.succeeded"
	PaymentFailed       = "payment.failed"
	PaymentConfirmError = "payment.confirm_failed"
	PaymentUnknown      = "payment.unknown_method"
	PaymentRedirecting  = "payment.redirecting"
	PaymentRetryFailed  = "payment.retry_failed"
	PaymentNothingToPay = "payment.no_pending"
	PaymentConfirming   = "payment.confirming"
	CycleStartRequired  = "cycle.start_required"
	CycleUnauthorized   = "cycle.unauthorized"
	CycleFailed         = "cycle.failed"
	RequestFailed       = "error.generic"
	BookingInProgress   = "booking.in_progress"
)

var texts = map[string][2]string{ // key -> {vi, en}
	LoginSuccess:        {"Đăng nhập thành công!", "login successful"},
	InvalidCredentials:  {"Tên đăng nhập hoặc mật khẩu không đúng!", "incorrect username or password"},
	ServerError:         {"Lỗi máy chủ, vui lòng thử lại sau!", "server error, please try again later"},
	LoginFailed:         {"Đăng nhập không thành công, vui lòng thử lại!", "login failed, please try again"},
	AlreadyLoggedIn:     {"Bạn đã đăng nhập. Vui lòng đăng xuất trước khi đổi tài khoản.", "already logged in, log out before switching accounts"},
	NotLoggedIn:         {"Bạn chưa đăng nhập hoặc phiên đã hết hạn.", "you are not logged in or your session has expired"},
	Forbidden:           {"Bạn không có quyền thực hiện thao tác này.", "you are not allowed to perform this action"},
	LogoutSuccess:       {"Đăng xuất thành công!", "logged out successfully"},
	RegisterSuccess:     {"Đăng ký thành công! Bạn có thể đăng nhập ngay bây giờ.", "registration successful, you can log in now"},
	RegisterFailed:      {"Đăng ký không thành công, vui lòng thử lại!", "registration failed, please try again"},
	PasswordMismatch:    {"Mật khẩu xác nhận không khớp!", "password confirmation does not match"},
	FieldRequired:       {"Vui lòng nhập %s!", "%s is required"},
	ProfileEmpty:        {"Không nhận được dữ liệu", "no profile data received"},
	ProfileFailed:       {"Không thể lấy thông tin người dùng", "could not load the user profile"},
	ProfileUpdated:      {"Cập nhật thông tin thành công!", "profile updated"},
	PaymentSucceeded:    {"Đặt lịch thành công!", "booking successful"},
	PaymentFailed:       {"Thanh toán thất bại!", "payment failed"},
	PaymentConfirmError: {"Có lỗi xảy ra khi xác nhận thanh toán.", "payment confirmation failed"},
	PaymentUnknown:      {"Không xác định phương thức thanh toán.", "unknown payment method"},
	PaymentRedirecting:  {"Đang chuyển hướng đến trang thanh toán ...", "redirecting to the payment page..."},
	PaymentRetryFailed:  {"Không thể thử lại thanh toán.", "could not retry the payment"},
	PaymentNothingToPay: {"Không có thanh toán nào đang chờ.", "there is no pending payment"},
	PaymentConfirming:   {"Thanh toán đang được xác nhận, vui lòng đợi.", "the payment is being confirmed, please wait"},
	CycleStartRequired:  {"Vui lòng chọn ngày bắt đầu kỳ kinh", "please choose the first day of your period"},
	CycleUnauthorized:   {"Bạn chưa đăng nhập hoặc token không hợp lệ.", "you are not logged in or the token is invalid"},
	CycleFailed:         {"Lỗi khi tính toán chu kỳ. Hãy thử lại sau.", "could not calculate the cycle, please try again later"},
	RequestFailed:       {"Có lỗi xảy ra, vui lòng thử lại.", "something went wrong, please try again"},
	BookingInProgress:   {"Yêu cầu đặt lịch đang được xử lý, vui lòng đợi.", "this booking is already being submitted, please wait"},
}

// Supported lists the locales with a full catalog, preferred first.
var Supported = []language.Tag{language.Vietnamese, language.English}

var (
	cat     = buildCatalog()
	matcher = language.NewMatcher(Supported)
)

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, t := range texts {
		_ = b.SetString(language.Vietnamese, key, t[0])
		_ = b.SetString(language.English, key, t[1])
	}
	return b
}

// Printer formats catalog messages for one locale.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// NewPrinter returns a printer for tag (vi or en; anything else maps to the
// closest supported locale).
func NewPrinter(tag language.Tag) *Printer {
	_, idx, _ := matcher.Match(tag)
	t := Supported[idx]
	return &Printer{tag: t, p: message.NewPrinter(t, message.Catalog(cat))}
}

// Match picks the printer for an Accept-Language header value, falling back
// to def when the header is empty or unparsable.
func Match(acceptLanguage string, def language.Tag) *Printer {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return NewPrinter(def)
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return NewPrinter(def)
	}
	return NewPrinter(Supported[idx])
}

// Tag returns the printer's locale.
func (p *Printer) Tag() language.Tag { return p.tag }

// T formats the message for key.
func (p *Printer) T(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

type ctxKey struct{}

// WithPrinter stores p on ctx.
func WithPrinter(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the printer stored on ctx, or an English printer.
func FromContext(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok && p != nil {
		return p
	}
	return english
}

var english = NewPrinter(language.English)

// T is shorthand for FromContext(ctx).T(key, args...).
func T(ctx context.Context, key string, args ...any) string {
	return FromContext(ctx).T(key, args...)
}

// ParseLocale maps a configured locale name to a tag; unknown names yield vi.
func ParseLocale(s string) language.Tag {
	if t, err := language.Parse(s); err == nil {
		_, idx, conf := matcher.Match(t)
		if conf != language.No {
			return Supported[idx]
		}
	}
	return language.Vietnamese
}
