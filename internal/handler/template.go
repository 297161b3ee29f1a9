package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/ciipa/plataforma/internal/auth"
	"github.com/ciipa/plataforma/internal/flash"
)

// Renderer executes page templates with the shared context every page needs:
// queued notices and the authenticated identity, if any.
type Renderer struct {
	templates *template.Template
	logger    *slog.Logger
}

func NewRenderer(glob string, logger *slog.Logger) *Renderer {
	return &Renderer{
		templates: template.Must(template.ParseGlob(glob)),
		logger:    logger,
	}
}

// Render executes the named template, draining queued notices into the page.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Notices"]; !ok {
		data["Notices"] = flash.Take(w, r)
	}
	if id, ok := auth.FromContext(r.Context()); ok {
		data["User"] = id
		data["IsAdmin"] = id.Role == "admin"
	}

	if err := rd.templates.ExecuteTemplate(w, name, data); err != nil {
		rd.logger.Error("render template", "template", name, "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
