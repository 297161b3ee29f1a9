package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/ciipa/plataforma/internal/backup"
	"github.com/ciipa/plataforma/internal/flash"
	"github.com/ciipa/plataforma/internal/upload"
)

// BackupHandler drives the admin backup/restore screens.
type BackupHandler struct {
	manager  *backup.Manager
	renderer *Renderer
	logger   *slog.Logger

	// restart is invoked after a successful restore: open connection
	// pools still reference the replaced database file, so the process
	// shuts down gracefully and comes back on the restored data.
	restart func()
}

func NewBackupHandler(manager *backup.Manager, renderer *Renderer, restart func(), logger *slog.Logger) *BackupHandler {
	return &BackupHandler{
		manager:  manager,
		renderer: renderer,
		restart:  restart,
		logger:   logger,
	}
}

// BackupPage lists existing artifacts and the manager status.
func (h *BackupHandler) BackupPage(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.manager.List()
	if err != nil {
		h.logger.Error("list backups", "error", err)
	}
	h.renderer.Render(w, r, "admin_backup.html", map[string]any{
		"Artifacts": artifacts,
		"Status":    h.manager.Status(),
	})
}

// BackupCreate produces a new snapshot and streams it back as a download.
func (h *BackupHandler) BackupCreate(w http.ResponseWriter, r *http.Request) {
	archive, err := h.manager.Create(r.Context())
	if err != nil {
		h.logger.Error("create backup", "error", err)
		flash.Add(w, r, flash.SeverityDanger, "No se pudo crear el respaldo: "+err.Error())
		http.Redirect(w, r, "/admin/respaldo", http.StatusSeeOther)
		return
	}
	h.streamArtifact(w, r, filepath.Base(archive))
}

// BackupDownload streams a previously created artifact.
func (h *BackupHandler) BackupDownload(w http.ResponseWriter, r *http.Request) {
	h.streamArtifact(w, r, r.PathValue("name"))
}

func (h *BackupHandler) streamArtifact(w http.ResponseWriter, r *http.Request, name string) {
	f, size, err := h.manager.Open(name)
	if err != nil {
		h.logger.Warn("open artifact", "name", name, "error", err)
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	if _, err := io.Copy(w, f); err != nil {
		h.logger.Warn("stream artifact", "name", name, "error", err)
	}
}

// BackupRestore replaces the live database with an uploaded snapshot. On
// success every session is gone, so the caller is logged out and the process
// restarts onto the restored file.
func (h *BackupHandler) BackupRestore(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(upload.MaxImageSize); err != nil {
		flash.Add(w, r, flash.SeverityWarning, "Formulario inválido.")
		http.Redirect(w, r, "/admin/respaldo", http.StatusSeeOther)
		return
	}

	file, _, err := r.FormFile("archive")
	if err != nil {
		flash.Add(w, r, flash.SeverityWarning, "Selecciona un archivo .zip de respaldo.")
		http.Redirect(w, r, "/admin/respaldo", http.StatusSeeOther)
		return
	}
	defer file.Close()

	if err := h.manager.Restore(r.Context(), file); err != nil {
		h.logger.Error("restore", "error", err)
		flash.Add(w, r, flash.SeverityDanger, "Restauración fallida: "+err.Error())
		http.Redirect(w, r, "/admin/respaldo", http.StatusSeeOther)
		return
	}

	clearSessionCookie(w)
	flash.Add(w, r, flash.SeveritySuccess, "Base de datos restaurada. Inicia sesión de nuevo.")
	http.Redirect(w, r, "/login", http.StatusSeeOther)

	if h.restart != nil {
		go h.restart()
	}
}
