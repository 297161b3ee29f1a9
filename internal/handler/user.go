package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ciipa/plataforma/internal/auth"
	"github.com/ciipa/plataforma/internal/flash"
	"github.com/ciipa/plataforma/internal/model"
	"github.com/ciipa/plataforma/internal/store"
)

// UserHandler covers the admin user-management and enrollment screens.
type UserHandler struct {
	userStore       *store.UserStore
	enrollmentStore *store.EnrollmentStore
	renderer        *Renderer
	logger          *slog.Logger
}

func NewUserHandler(us *store.UserStore, es *store.EnrollmentStore, renderer *Renderer, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userStore:       us,
		enrollmentStore: es,
		renderer:        renderer,
		logger:          logger,
	}
}

// UsersPage renders the user list and creation form.
func (h *UserHandler) UsersPage(w http.ResponseWriter, r *http.Request) {
	users, err := h.userStore.List()
	if err != nil {
		h.logger.Error("load users", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "admin_users.html", map[string]any{"Users": users})
}

// UserCreate adds an account from the admin panel, with role choice.
func (h *UserHandler) UserCreate(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	role := r.FormValue("role")

	if role != model.RoleAdmin && role != model.RoleStudent {
		role = model.RoleStudent
	}
	if emailAddr == "" || password == "" {
		flash.Add(w, r, flash.SeverityWarning, "Correo y contraseña son obligatorios.")
		http.Redirect(w, r, "/admin/usuarios", http.StatusSeeOther)
		return
	}

	existing, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("user lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		flash.Add(w, r, flash.SeverityWarning, "Ese correo ya existe.")
		http.Redirect(w, r, "/admin/usuarios", http.StatusSeeOther)
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if _, err := h.userStore.Create(emailAddr, hash, role); err != nil {
		h.logger.Error("create user", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	flash.Add(w, r, flash.SeveritySuccess, "Usuario creado.")
	http.Redirect(w, r, "/admin/usuarios", http.StatusSeeOther)
}

// EnrollmentsPage lists received enrollment requests.
func (h *UserHandler) EnrollmentsPage(w http.ResponseWriter, r *http.Request) {
	enrollments, err := h.enrollmentStore.List()
	if err != nil {
		h.logger.Error("load enrollments", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "admin_enrollments.html", map[string]any{"Enrollments": enrollments})
}
