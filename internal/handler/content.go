package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/ciipa/plataforma/internal/flash"
	"github.com/ciipa/plataforma/internal/model"
	"github.com/ciipa/plataforma/internal/store"
	"github.com/ciipa/plataforma/internal/upload"
)

// ContentHandler manages the admin content screens: home banner, programs,
// gallery, and testimonials.
type ContentHandler struct {
	homeStore        *store.HomeStore
	programStore     *store.ProgramStore
	galleryStore     *store.GalleryStore
	testimonialStore *store.TestimonialStore
	saver            *upload.Saver
	renderer         *Renderer
	logger           *slog.Logger
}

func NewContentHandler(
	hs *store.HomeStore,
	ps *store.ProgramStore,
	gs *store.GalleryStore,
	ts *store.TestimonialStore,
	saver *upload.Saver,
	renderer *Renderer,
	logger *slog.Logger,
) *ContentHandler {
	return &ContentHandler{
		homeStore:        hs,
		programStore:     ps,
		galleryStore:     gs,
		testimonialStore: ts,
		saver:            saver,
		renderer:         renderer,
		logger:           logger,
	}
}

// saveOptionalImage stores an uploaded image field if one was submitted.
// Returns "" when the field is empty.
func (h *ContentHandler) saveOptionalImage(w http.ResponseWriter, r *http.Request, field string) (string, bool) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return "", true
	}
	if err != nil {
		flash.Add(w, r, flash.SeverityWarning, "No se pudo leer la imagen.")
		return "", false
	}
	defer file.Close()

	name, err := h.saver.SaveImage(file, header)
	if err != nil {
		h.logger.Warn("save image", "error", err)
		flash.Add(w, r, flash.SeverityWarning, "Imagen rechazada: sólo JPG/PNG de hasta 10 MB.")
		return "", false
	}
	return name, true
}

// HomeContentPage renders the banner editor.
func (h *ContentHandler) HomeContentPage(w http.ResponseWriter, r *http.Request) {
	content, err := h.homeStore.Get()
	if err != nil {
		h.logger.Error("load home content", "error", err)
	}
	h.renderer.Render(w, r, "admin_home.html", map[string]any{"Content": content})
}

// HomeContentSave updates the banner (title, subtitle, optional image).
func (h *ContentHandler) HomeContentSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(upload.MaxImageSize); err != nil {
		flash.Add(w, r, flash.SeverityWarning, "Formulario inválido.")
		http.Redirect(w, r, "/admin/portada", http.StatusSeeOther)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	subtitle := strings.TrimSpace(r.FormValue("subtitle"))
	if title == "" || subtitle == "" {
		flash.Add(w, r, flash.SeverityWarning, "Título y subtítulo son obligatorios.")
		http.Redirect(w, r, "/admin/portada", http.StatusSeeOther)
		return
	}

	image, ok := h.saveOptionalImage(w, r, "image")
	if !ok {
		http.Redirect(w, r, "/admin/portada", http.StatusSeeOther)
		return
	}

	if _, err := h.homeStore.Save(title, subtitle, image); err != nil {
		h.logger.Error("save home content", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	flash.Add(w, r, flash.SeveritySuccess, "Portada actualizada.")
	http.Redirect(w, r, "/admin/portada", http.StatusSeeOther)
}

// ProgramsPage renders the program management list.
func (h *ContentHandler) ProgramsPage(w http.ResponseWriter, r *http.Request) {
	programs, err := h.programStore.List(false)
	if err != nil {
		h.logger.Error("load programs", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "admin_programs.html", map[string]any{"Programs": programs})
}

func (h *ContentHandler) programFromForm(w http.ResponseWriter, r *http.Request) (model.Program, bool) {
	if err := r.ParseMultipartForm(upload.MaxImageSize); err != nil {
		flash.Add(w, r, flash.SeverityWarning, "Formulario inválido.")
		return model.Program{}, false
	}

	p := model.Program{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Kind:     r.FormValue("kind"),
		Duration: strings.TrimSpace(r.FormValue("duration")),
		Price:    strings.TrimSpace(r.FormValue("price")),
		Visible:  r.FormValue("visible") == "on",
	}
	if p.Name == "" {
		flash.Add(w, r, flash.SeverityWarning, "El nombre es obligatorio.")
		return model.Program{}, false
	}
	if p.Kind != model.ProgramCarrera {
		p.Kind = model.ProgramDiplomado
	}

	image, ok := h.saveOptionalImage(w, r, "image")
	if !ok {
		return model.Program{}, false
	}
	p.Image = image
	return p, true
}

// ProgramCreate adds a program.
func (h *ContentHandler) ProgramCreate(w http.ResponseWriter, r *http.Request) {
	p, ok := h.programFromForm(w, r)
	if !ok {
		http.Redirect(w, r, "/admin/programas", http.StatusSeeOther)
		return
	}
	if _, err := h.programStore.Create(p); err != nil {
		h.logger.Error("create program", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	flash.Add(w, r, flash.SeveritySuccess, "Programa creado.")
	http.Redirect(w, r, "/admin/programas", http.StatusSeeOther)
}

// ProgramUpdate edits a program.
func (h *ContentHandler) ProgramUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	p, ok := h.programFromForm(w, r)
	if !ok {
		http.Redirect(w, r, "/admin/programas", http.StatusSeeOther)
		return
	}
	p.ID = id

	updated, err := h.programStore.Update(p)
	if err != nil {
		h.logger.Error("update program", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if updated == nil {
		http.NotFound(w, r)
		return
	}
	flash.Add(w, r, flash.SeveritySuccess, "Programa actualizado.")
	http.Redirect(w, r, "/admin/programas", http.StatusSeeOther)
}

// ProgramToggle flips a program's visibility.
func (h *ContentHandler) ProgramToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	p, err := h.programStore.GetByID(id)
	if err != nil || p == nil {
		http.NotFound(w, r)
		return
	}
	if err := h.programStore.SetVisible(id, !p.Visible); err != nil {
		h.logger.Error("toggle program", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/programas", http.StatusSeeOther)
}

// ProgramDelete removes a program and its stored image.
func (h *ContentHandler) ProgramDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	p, err := h.programStore.GetByID(id)
	if err != nil {
		h.logger.Error("load program", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if p == nil {
		http.NotFound(w, r)
		return
	}
	if err := h.programStore.Delete(id); err != nil {
		h.logger.Error("delete program", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.saver.Remove(p.Image); err != nil {
		h.logger.Warn("remove program image", "error", err)
	}
	flash.Add(w, r, flash.SeverityInfo, "Programa eliminado.")
	http.Redirect(w, r, "/admin/programas", http.StatusSeeOther)
}

// GalleryPage renders the gallery manager.
func (h *ContentHandler) GalleryPage(w http.ResponseWriter, r *http.Request) {
	images, err := h.galleryStore.List(false)
	if err != nil {
		h.logger.Error("load gallery", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "admin_gallery.html", map[string]any{"Images": images})
}

// GalleryUpload stores a new gallery photo. The image is required here.
func (h *ContentHandler) GalleryUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(upload.MaxImageSize); err != nil {
		flash.Add(w, r, flash.SeverityWarning, "Formulario inválido.")
		http.Redirect(w, r, "/admin/galeria", http.StatusSeeOther)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		flash.Add(w, r, flash.SeverityWarning, "Selecciona una imagen JPG o PNG.")
		http.Redirect(w, r, "/admin/galeria", http.StatusSeeOther)
		return
	}
	defer file.Close()

	name, err := h.saver.SaveImage(file, header)
	if err != nil {
		h.logger.Warn("save gallery image", "error", err)
		flash.Add(w, r, flash.SeverityWarning, "Imagen rechazada: sólo JPG/PNG de hasta 10 MB.")
		http.Redirect(w, r, "/admin/galeria", http.StatusSeeOther)
		return
	}

	if _, err := h.galleryStore.Create(name, r.FormValue("visible") == "on"); err != nil {
		h.logger.Error("create gallery image", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	flash.Add(w, r, flash.SeveritySuccess, "Imagen subida.")
	http.Redirect(w, r, "/admin/galeria", http.StatusSeeOther)
}

// GalleryToggle flips a photo's visibility.
func (h *ContentHandler) GalleryToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	img, err := h.galleryStore.GetByID(id)
	if err != nil || img == nil {
		http.NotFound(w, r)
		return
	}
	if err := h.galleryStore.SetVisible(id, !img.Visible); err != nil {
		h.logger.Error("toggle gallery image", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/galeria", http.StatusSeeOther)
}

// GalleryDelete removes a photo and its file.
func (h *ContentHandler) GalleryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	img, err := h.galleryStore.GetByID(id)
	if err != nil {
		h.logger.Error("load gallery image", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if img == nil {
		http.NotFound(w, r)
		return
	}
	if err := h.galleryStore.Delete(id); err != nil {
		h.logger.Error("delete gallery image", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.saver.Remove(img.Filename); err != nil {
		h.logger.Warn("remove gallery file", "error", err)
	}
	flash.Add(w, r, flash.SeverityInfo, "Imagen eliminada.")
	http.Redirect(w, r, "/admin/galeria", http.StatusSeeOther)
}

// TestimonialsPage renders the testimonial manager.
func (h *ContentHandler) TestimonialsPage(w http.ResponseWriter, r *http.Request) {
	testimonials, err := h.testimonialStore.List(false)
	if err != nil {
		h.logger.Error("load testimonials", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	h.renderer.Render(w, r, "admin_testimonials.html", map[string]any{"Testimonials": testimonials})
}

// TestimonialCreate adds a testimonial.
func (h *ContentHandler) TestimonialCreate(w http.ResponseWriter, r *http.Request) {
	phrase := strings.TrimSpace(r.FormValue("phrase"))
	name := strings.TrimSpace(r.FormValue("name"))
	year, _ := strconv.Atoi(r.FormValue("year"))

	if phrase == "" || name == "" || year < 2020 || year > 2100 {
		flash.Add(w, r, flash.SeverityWarning, "Frase, nombre y un año válido son obligatorios.")
		http.Redirect(w, r, "/admin/testimonios", http.StatusSeeOther)
		return
	}

	if _, err := h.testimonialStore.Create(phrase, name, year); err != nil {
		h.logger.Error("create testimonial", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	flash.Add(w, r, flash.SeveritySuccess, "Testimonio guardado.")
	http.Redirect(w, r, "/admin/testimonios", http.StatusSeeOther)
}

// TestimonialUpdate edits an existing testimonial in place.
func (h *ContentHandler) TestimonialUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	existing, err := h.testimonialStore.GetByID(id)
	if err != nil || existing == nil {
		http.NotFound(w, r)
		return
	}

	phrase := strings.TrimSpace(r.FormValue("phrase"))
	name := strings.TrimSpace(r.FormValue("name"))
	year, _ := strconv.Atoi(r.FormValue("year"))

	if phrase == "" || name == "" || year < 2020 || year > 2100 {
		flash.Add(w, r, flash.SeverityWarning, "Frase, nombre y un año válido son obligatorios.")
		http.Redirect(w, r, "/admin/testimonios", http.StatusSeeOther)
		return
	}

	existing.Phrase = phrase
	existing.Name = name
	existing.Year = year
	if _, err := h.testimonialStore.Update(*existing); err != nil {
		h.logger.Error("update testimonial", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	flash.Add(w, r, flash.SeveritySuccess, "Testimonio actualizado.")
	http.Redirect(w, r, "/admin/testimonios", http.StatusSeeOther)
}

// TestimonialToggle flips a testimonial's visibility.
func (h *ContentHandler) TestimonialToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	t, err := h.testimonialStore.GetByID(id)
	if err != nil || t == nil {
		http.NotFound(w, r)
		return
	}
	if err := h.testimonialStore.SetVisible(id, !t.Visible); err != nil {
		h.logger.Error("toggle testimonial", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "/admin/testimonios", http.StatusSeeOther)
}

// TestimonialDelete removes a testimonial.
func (h *ContentHandler) TestimonialDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := h.testimonialStore.Delete(id); err != nil {
		h.logger.Error("delete testimonial", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	flash.Add(w, r, flash.SeverityInfo, "Testimonio eliminado.")
	http.Redirect(w, r, "/admin/testimonios", http.StatusSeeOther)
}
