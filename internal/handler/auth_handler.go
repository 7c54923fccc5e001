package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/notekeeper/internal/metrics"
	"github.com/hitoshi/notekeeper/internal/middleware"
	"github.com/hitoshi/notekeeper/internal/model"
	"github.com/hitoshi/notekeeper/internal/view"
)

// registerForm は登録フォームの入力値。
// パスワードは入力どおりに扱い、空白の除去は行わない。
type registerForm struct {
	Username  string `validate:"required"`
	Email     string `validate:"required"`
	Password  string `validate:"required"`
	Password2 string `validate:"required"`
}

// problems は登録フォームの入力エラーを画面表示順に返す。
// 各ルールは独立に評価し、該当するものをすべて返す。
func (f registerForm) problems(v *validator.Validate) []string {
	var errs []string
	if err := v.Struct(f); err != nil {
		errs = append(errs, msgMissingFields)
	}
	if err := v.VarWithValue(f.Password2, f.Password, "eqfield"); err != nil {
		errs = append(errs, msgPasswordMismatch)
	}
	if err := v.Var(f.Password, "min=6"); err != nil {
		errs = append(errs, msgPasswordTooShort)
	}
	return errs
}

// AuthHandler は登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	users    RegistrationService
	authn    AuthenticatorInterface
	sessions SessionService
	cookies  *middleware.SessionCookies
	flash    *middleware.Flash
	renderer PageRenderer
	metrics  metrics.MetricsCollector
	validate *validator.Validate
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	users RegistrationService,
	authn AuthenticatorInterface,
	sessions SessionService,
	cookies *middleware.SessionCookies,
	flash *middleware.Flash,
	renderer PageRenderer,
	m metrics.MetricsCollector,
) *AuthHandler {
	if m == nil {
		m = metrics.NopCollector{}
	}
	return &AuthHandler{
		users:    users,
		authn:    authn,
		sessions: sessions,
		cookies:  cookies,
		flash:    flash,
		renderer: renderer,
		metrics:  m,
		validate: newValidator(),
	}
}

// RegisterForm は登録フォームを表示する。
// GET /register
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, view.PageRegister, view.Page{Title: "Register"})
}

// Register はユーザー登録を処理する。
// 入力エラーや重複時はフォームを入力値付きで再表示する。
// POST /register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form := registerForm{
		Username:  formValue(r, "username"),
		Email:     formValue(r, "email"),
		Password:  r.PostFormValue("password"),
		Password2: r.PostFormValue("password2"),
	}

	if errs := form.problems(h.validate); len(errs) > 0 {
		h.metrics.RecordRegistration(metrics.OutcomeInvalid)
		h.renderRegister(w, r, form, errs)
		return
	}

	if _, err := h.users.Register(r.Context(), form.Username, form.Email, form.Password); err != nil {
		var errs []string
		switch {
		case model.HasCode(err, model.ErrCodeDuplicateEmail):
			h.metrics.RecordRegistration(metrics.OutcomeDuplicate)
			errs = []string{appErrorMessage(err, "Email already exists")}
		case model.HasCode(err, model.ErrCodeValidation):
			h.metrics.RecordRegistration(metrics.OutcomeInvalid)
			errs = validationDetails(err)
		default:
			h.metrics.RecordRegistration(metrics.OutcomeError)
			slog.Error("registration failed", slog.String("error", err.Error()))
			errs = []string{appErrorMessage(err, "Error registering user")}
		}
		h.renderRegister(w, r, form, errs)
		return
	}

	h.metrics.RecordRegistration(metrics.OutcomeSuccess)
	h.flash.Redirect(w, r, "/login", middleware.SuccessNotice("You are now registered and can log in"))
}

func (h *AuthHandler) renderRegister(w http.ResponseWriter, r *http.Request, form registerForm, errs []string) {
	h.renderer.Render(w, r, http.StatusOK, view.PageRegister, view.Page{
		Title:  "Register",
		Errors: errs,
		Form: map[string]string{
			"username": form.Username,
			"email":    form.Email,
		},
	})
}

// LoginForm はログインフォームを表示する。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, http.StatusOK, view.PageLogin, view.Page{Title: "Login"})
}

// Login はメールアドレスとパスワードを検証し、セッションを確立する。
// 既存のセッションは破棄してから新しいセッションを発行する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	result, err := h.authn.Authenticate(ctx, formValue(r, "email"), r.PostFormValue("password"))
	if err != nil {
		h.metrics.RecordLogin(metrics.OutcomeError)
		h.flash.Redirect(w, r, "/login", middleware.ErrorNotice(appErrorMessage(err, "Error logging in")))
		return
	}
	if !result.Authenticated() {
		outcome := metrics.OutcomeBadPassword
		if result.Reason != nil && result.Reason.Code == model.ErrCodeUnknownEmail {
			outcome = metrics.OutcomeUnknownEmail
		}
		h.metrics.RecordLogin(outcome)
		h.flash.Redirect(w, r, "/login", middleware.ErrorNotice(result.Message()))
		return
	}

	if old := middleware.SessionHandleFromContext(ctx); old != "" {
		if err := h.sessions.Terminate(ctx, old); err != nil {
			slog.Warn("failed to terminate previous session", slog.String("error", err.Error()))
		}
	}

	session, err := h.sessions.Establish(ctx, result.UserID)
	if err != nil {
		h.metrics.RecordLogin(metrics.OutcomeError)
		slog.Error("failed to establish session",
			slog.String("user_id", result.UserID),
			slog.String("error", err.Error()),
		)
		h.flash.Redirect(w, r, "/login", middleware.ErrorNotice("Error logging in"))
		return
	}

	h.cookies.Set(w, session.ID, h.sessions.MaxAge())
	h.metrics.RecordLogin(metrics.OutcomeSuccess)
	slog.Info("user logged in", slog.String("user_id", result.UserID))
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// Logout はセッションを破棄してログイン画面へリダイレクトする。
// ストアの障害時は500ページを返し、Cookieは残す。
// GET /logout, POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Terminate(r.Context(), middleware.SessionHandleFromContext(r.Context())); err != nil {
		middleware.WriteInternalServerError(w, r, h.renderer, err)
		return
	}

	h.cookies.Clear(w)
	h.flash.Redirect(w, r, "/login", middleware.SuccessNotice("You are logged out"))
}

// validationDetails はValidationErrorの個別メッセージを返す。
func validationDetails(err error) []string {
	var appErr *model.AppError
	if !errors.As(err, &appErr) {
		return []string{msgMissingFields}
	}
	if len(appErr.Details) > 0 {
		return appErr.Details
	}
	return []string{appErr.Message}
}
