package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ciipa/plataforma/internal/auth"
	"github.com/ciipa/plataforma/internal/email"
	"github.com/ciipa/plataforma/internal/flash"
	"github.com/ciipa/plataforma/internal/middleware"
	"github.com/ciipa/plataforma/internal/model"
	"github.com/ciipa/plataforma/internal/store"
)

const (
	pendingCookieName = "ciipa_pending_2fa"

	twoFactorTTL    = 10 * time.Minute
	resetTTL        = 30 * time.Minute
	maxCodeAttempts = 5

	// One generic message for every credential failure, so a response
	// never reveals whether the email exists.
	invalidCredentialsMsg = "Credenciales inválidas"
)

type AuthHandler struct {
	userStore    *store.UserStore
	sessionStore *store.SessionStore
	tokens       *auth.Tokens
	emailClient  *email.Client
	renderer     *Renderer
	baseURL      string
	logger       *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	tokens *auth.Tokens,
	ec *email.Client,
	renderer *Renderer,
	baseURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:    us,
		sessionStore: ss,
		tokens:       tokens,
		emailClient:  ec,
		renderer:     renderer,
		baseURL:      baseURL,
		logger:       logger,
	}
}

// LoginPage renders the login form. Reaching it abandons any pending
// second-factor flow.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	clearPendingCookie(w)
	h.renderer.Render(w, r, "login.html", nil)
}

// Login verifies email and password. Admins continue to the second-factor
// prompt; everyone else gets a session immediately.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		flash.Add(w, r, flash.SeverityDanger, invalidCredentialsMsg)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if user.Role != model.RoleAdmin {
		if err := h.establishSession(w, r, user.ID); err != nil {
			h.logger.Error("create session", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	// Admin: generate a fresh one-time code, replacing any previous one.
	code, err := auth.GenerateCode()
	if err != nil {
		h.logger.Error("generate code", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.userStore.SetTwoFactorCode(user.ID, code, time.Now().UTC().Add(twoFactorTTL)); err != nil {
		h.logger.Error("store code", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	pending, err := h.tokens.Mint(user.ID, auth.PurposeTwoFactor, twoFactorTTL)
	if err != nil {
		h.logger.Error("mint pending token", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     pendingCookieName,
		Value:    pending,
		Path:     "/",
		MaxAge:   int(twoFactorTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})

	if h.emailClient.Configured() {
		if err := h.emailClient.SendTwoFactorCode(user.Email, code); err != nil {
			h.logger.Error("send twofactor code", "error", err)
		}
		flash.Add(w, r, flash.SeverityInfo, "Te enviamos un código de verificación por correo.")
	} else {
		// No delivery channel configured: surface the code on screen,
		// as the original deployment did.
		flash.Add(w, r, flash.SeverityInfo, "Código 2FA simulado: "+code)
	}

	http.Redirect(w, r, "/twofactor", http.StatusSeeOther)
}

// TwoFactorPage renders the code prompt. Stale danger notices from earlier
// attempts are dropped; other severities (including the simulated code
// notice) are preserved.
func (h *AuthHandler) TwoFactorPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.pendingUser(r); !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, r, "twofactor.html", map[string]any{
		"Notices": flash.TakeNonDanger(w, r),
	})
}

// TwoFactorConfirm validates the submitted code against the stored one-time
// code: exact match, unexpired, under the attempt limit.
func (h *AuthHandler) TwoFactorConfirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pendingUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := h.userStore.GetByID(userID)
	if err != nil || user == nil {
		h.logger.Error("twofactor user lookup", "error", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	if user.TwoFactorCode == nil || user.TwoFactorExpiresAt == nil ||
		time.Now().UTC().After(*user.TwoFactorExpiresAt) {
		h.abandonTwoFactor(w, r, user.ID, "El código ha caducado. Inicia sesión de nuevo.")
		return
	}

	submitted := strings.TrimSpace(r.FormValue("code"))
	if submitted != *user.TwoFactorCode {
		attempts, err := h.userStore.IncrementTwoFactorAttempts(user.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= maxCodeAttempts {
			h.abandonTwoFactor(w, r, user.ID, "Demasiados intentos. Inicia sesión de nuevo.")
			return
		}
		// Render directly rather than redirect: the prompt's GET view
		// drops danger notices, and this one must be seen.
		notices := append(flash.Take(w, r), flash.Notice{
			Severity: flash.SeverityDanger,
			Text:     "Código incorrecto",
		})
		h.renderer.Render(w, r, "twofactor.html", map[string]any{"Notices": notices})
		return
	}

	// Exact match: consume the code so it can never be replayed.
	if err := h.userStore.ClearTwoFactorCode(user.ID); err != nil {
		h.logger.Error("clear code", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	clearPendingCookie(w)

	if err := h.establishSession(w, r, user.ID); err != nil {
		h.logger.Error("create session", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout destroys the session. Always succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(id.SessionToken); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	clearSessionCookie(w)
	flash.Add(w, r, flash.SeverityInfo, "Sesión cerrada")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RegisterPage renders public student self-registration.
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "register.html", nil)
}

// Register creates a student account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	confirm := r.FormValue("confirm")

	if emailAddr == "" || password == "" {
		flash.Add(w, r, flash.SeverityWarning, "Correo y contraseña son obligatorios.")
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}
	if password != confirm {
		flash.Add(w, r, flash.SeverityWarning, "Las contraseñas deben coincidir.")
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}

	existing, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		flash.Add(w, r, flash.SeverityWarning, "Ese correo ya existe.")
		http.Redirect(w, r, "/register", http.StatusSeeOther)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if _, err := h.userStore.Create(emailAddr, hash, model.RoleStudent); err != nil {
		h.logger.Error("create user", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	flash.Add(w, r, flash.SeveritySuccess, "Registro exitoso. Inicia sesión.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// ResetRequestPage renders the reset-request form.
func (h *AuthHandler) ResetRequestPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "reset_request.html", nil)
}

// ResetRequest emails a signed reset link. The response is identical whether
// or not the address exists.
func (h *AuthHandler) ResetRequest(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.FormValue("email"))

	// Respond the same way on every path.
	defer func() {
		flash.Add(w, r, flash.SeverityInfo, "Si el correo existe, recibirás un enlace para restablecer tu contraseña.")
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}()

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("reset lookup", "error", err)
		return
	}
	if user == nil {
		return
	}

	token, err := h.tokens.Mint(user.ID, auth.PurposeReset, resetTTL)
	if err != nil {
		h.logger.Error("mint reset token", "error", err)
		return
	}

	link := h.baseURL + "/reset/" + token
	if !h.emailClient.Configured() {
		h.logger.Info("password reset link (email not configured)", "user", user.Email, "link", link)
		return
	}
	if err := h.emailClient.SendPasswordReset(user.Email, link); err != nil {
		h.logger.Error("send reset email", "error", err)
	}
}

// ResetPasswordPage renders the new-password form for a valid token.
func (h *AuthHandler) ResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if _, err := h.tokens.Validate(token, auth.PurposeReset); err != nil {
		flash.Add(w, r, flash.SeverityDanger, "El enlace no es válido o ha caducado.")
		http.Redirect(w, r, "/reset", http.StatusSeeOther)
		return
	}
	h.renderer.Render(w, r, "reset_password.html", map[string]any{"Token": token})
}

// ResetPassword sets the new password for a valid token.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	userID, err := h.tokens.Validate(token, auth.PurposeReset)
	if err != nil {
		flash.Add(w, r, flash.SeverityDanger, "El enlace no es válido o ha caducado.")
		http.Redirect(w, r, "/reset", http.StatusSeeOther)
		return
	}

	password := r.FormValue("password")
	confirm := r.FormValue("confirm")
	if len(password) < 6 {
		flash.Add(w, r, flash.SeverityWarning, "La contraseña debe tener al menos 6 caracteres.")
		http.Redirect(w, r, "/reset/"+token, http.StatusSeeOther)
		return
	}
	if password != confirm {
		flash.Add(w, r, flash.SeverityWarning, "Las contraseñas deben coincidir.")
		http.Redirect(w, r, "/reset/"+token, http.StatusSeeOther)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.userStore.UpdatePassword(userID, hash); err != nil {
		h.logger.Error("update password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	flash.Add(w, r, flash.SeveritySuccess, "Contraseña restablecida. Inicia sesión.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// pendingUser resolves the pending-2FA marker cookie to a user ID.
func (h *AuthHandler) pendingUser(r *http.Request) (int64, bool) {
	cookie, err := r.Cookie(pendingCookieName)
	if err != nil || cookie.Value == "" {
		return 0, false
	}
	userID, err := h.tokens.Validate(cookie.Value, auth.PurposeTwoFactor)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// abandonTwoFactor clears the code and pending marker and sends the user
// back to login with a danger notice.
func (h *AuthHandler) abandonTwoFactor(w http.ResponseWriter, r *http.Request, userID int64, msg string) {
	if err := h.userStore.ClearTwoFactorCode(userID); err != nil {
		h.logger.Error("clear code", "error", err)
	}
	clearPendingCookie(w)
	flash.Add(w, r, flash.SeverityDanger, msg)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) establishSession(w http.ResponseWriter, r *http.Request, userID int64) error {
	sess, err := h.sessionStore.Create(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return nil
}

func clearPendingCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     pendingCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
