package handler

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/ciipa/plataforma/internal/flash"
	"github.com/ciipa/plataforma/internal/store"
	"github.com/ciipa/plataforma/internal/websocket"
)

var phonePattern = regexp.MustCompile(`^[0-9]{10,}$`)

// PublicHandler serves the unauthenticated site: home, program catalog,
// gallery, and the enrollment form.
type PublicHandler struct {
	homeStore        *store.HomeStore
	programStore     *store.ProgramStore
	galleryStore     *store.GalleryStore
	testimonialStore *store.TestimonialStore
	enrollmentStore  *store.EnrollmentStore
	hub              *websocket.Hub
	renderer         *Renderer
	logger           *slog.Logger
}

func NewPublicHandler(
	hs *store.HomeStore,
	ps *store.ProgramStore,
	gs *store.GalleryStore,
	ts *store.TestimonialStore,
	es *store.EnrollmentStore,
	hub *websocket.Hub,
	renderer *Renderer,
	logger *slog.Logger,
) *PublicHandler {
	return &PublicHandler{
		homeStore:        hs,
		programStore:     ps,
		galleryStore:     gs,
		testimonialStore: ts,
		enrollmentStore:  es,
		hub:              hub,
		renderer:         renderer,
		logger:           logger,
	}
}

// Home renders the front page: banner content plus visible testimonials.
func (h *PublicHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	content, err := h.homeStore.Get()
	if err != nil {
		h.logger.Error("load home content", "error", err)
	}
	testimonials, err := h.testimonialStore.List(true)
	if err != nil {
		h.logger.Error("load testimonials", "error", err)
	}

	h.renderer.Render(w, r, "index.html", map[string]any{
		"Content":      content,
		"Testimonials": testimonials,
	})
}

// Programs renders the visible program catalog.
func (h *PublicHandler) Programs(w http.ResponseWriter, r *http.Request) {
	programs, err := h.programStore.List(true)
	if err != nil {
		h.logger.Error("load programs", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "programs.html", map[string]any{"Programs": programs})
}

// Gallery renders the visible photo gallery.
func (h *PublicHandler) Gallery(w http.ResponseWriter, r *http.Request) {
	images, err := h.galleryStore.List(true)
	if err != nil {
		h.logger.Error("load gallery", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "gallery.html", map[string]any{"Images": images})
}

// EnrollPage renders the enrollment form with the program choices.
func (h *PublicHandler) EnrollPage(w http.ResponseWriter, r *http.Request) {
	programs, err := h.programStore.List(true)
	if err != nil {
		h.logger.Error("load programs", "error", err)
	}
	h.renderer.Render(w, r, "enroll.html", map[string]any{"Programs": programs})
}

// Enroll validates and records an enrollment request.
func (h *PublicHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	program := strings.TrimSpace(r.FormValue("program"))
	emailAddr := strings.TrimSpace(r.FormValue("email"))
	phone := strings.TrimSpace(r.FormValue("phone"))

	var problem string
	switch {
	case name == "" || program == "":
		problem = "Nombre y programa son obligatorios."
	case !strings.Contains(emailAddr, "@") || len(emailAddr) < 6:
		problem = "Correo electrónico inválido."
	case !phonePattern.MatchString(phone):
		problem = "El número de contacto debe tener al menos 10 dígitos."
	}
	if problem != "" {
		flash.Add(w, r, flash.SeverityWarning, problem)
		http.Redirect(w, r, "/inscripcion", http.StatusSeeOther)
		return
	}

	enrollment, err := h.enrollmentStore.Create(name, program, emailAddr, phone)
	if err != nil {
		h.logger.Error("create enrollment", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.hub.Broadcast(websocket.Event{
		Type: "enrollment_created",
		Extra: map[string]any{
			"id":      enrollment.ID,
			"name":    enrollment.Name,
			"program": enrollment.Program,
		},
	})

	flash.Add(w, r, flash.SeveritySuccess, "Inscripción enviada. Nos pondremos en contacto contigo.")
	http.Redirect(w, r, "/inscripcion", http.StatusSeeOther)
}
