package handler

import (
	"log/slog"
	"net/http"

	"github.com/ciipa/plataforma/internal/auth"
	"github.com/ciipa/plataforma/internal/store"
)

// DashboardHandler renders the role-split landing page after login.
type DashboardHandler struct {
	programStore    *store.ProgramStore
	enrollmentStore *store.EnrollmentStore
	userStore       *store.UserStore
	renderer        *Renderer
	logger          *slog.Logger
}

func NewDashboardHandler(
	ps *store.ProgramStore,
	es *store.EnrollmentStore,
	us *store.UserStore,
	renderer *Renderer,
	logger *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		programStore:    ps,
		enrollmentStore: es,
		userStore:       us,
		renderer:        renderer,
		logger:          logger,
	}
}

// Dashboard shows the admin panel for admins, the student view otherwise.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	if !auth.IsAdmin(r.Context()) {
		programs, err := h.programStore.List(true)
		if err != nil {
			h.logger.Error("load programs", "error", err)
		}
		h.renderer.Render(w, r, "dashboard_student.html", map[string]any{
			"Programs": programs,
		})
		return
	}

	enrollments, err := h.enrollmentStore.List()
	if err != nil {
		h.logger.Error("load enrollments", "error", err)
	}
	students, err := h.userStore.CountByRole("student")
	if err != nil {
		h.logger.Error("count students", "error", err)
	}

	h.renderer.Render(w, r, "dashboard_admin.html", map[string]any{
		"Enrollments":  enrollments,
		"StudentCount": students,
	})
}
