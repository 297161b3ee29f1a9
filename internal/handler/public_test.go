package handler

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ciipa/plataforma/internal/database"
	"github.com/ciipa/plataforma/internal/model"
	"github.com/ciipa/plataforma/internal/store"
	"github.com/ciipa/plataforma/internal/websocket"
)

func publicRenderer(t *testing.T) *Renderer {
	t.Helper()
	dir := t.TempDir()
	pages := map[string]string{
		"index.html":    `{{with .Content}}{{.Title}}{{end}} {{range .Testimonials}}<q>{{.Phrase}}</q>{{end}}`,
		"programs.html": `{{range .Programs}}<h2>{{.Name}}</h2>{{end}}`,
		"gallery.html":  `{{range .Images}}<img src="/static/img/{{.Filename}}">{{end}}`,
		"enroll.html":   `{{range .Programs}}<option>{{.Name}}</option>{{end}}`,
	}
	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write stub template: %v", err)
		}
	}
	return NewRenderer(filepath.Join(dir, "*.html"), discardLogger())
}

type publicFixture struct {
	handler      *PublicHandler
	homeStore    *store.HomeStore
	programStore *store.ProgramStore
	testimonials *store.TestimonialStore
	enrollments  *store.EnrollmentStore
	hub          *websocket.Hub
}

func setupPublicHandler(t *testing.T) *publicFixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	hub := websocket.NewHub(discardLogger())
	f := &publicFixture{
		homeStore:    store.NewHomeStore(db),
		programStore: store.NewProgramStore(db),
		testimonials: store.NewTestimonialStore(db),
		enrollments:  store.NewEnrollmentStore(db),
		hub:          hub,
	}
	f.handler = NewPublicHandler(
		f.homeStore, f.programStore, store.NewGalleryStore(db),
		f.testimonials, f.enrollments, hub,
		publicRenderer(t), discardLogger(),
	)
	return f
}

func TestHomeShowsBannerAndVisibleTestimonials(t *testing.T) {
	f := setupPublicHandler(t)

	if _, err := f.homeStore.Save("Bienvenido a CIIPA", "Sub", ""); err != nil {
		t.Fatalf("save banner: %v", err)
	}
	if _, err := f.testimonials.Create("Visible", "Ana", 2022); err != nil {
		t.Fatalf("create testimonial: %v", err)
	}
	hidden, err := f.testimonials.Create("Oculto", "Luis", 2023)
	if err != nil {
		t.Fatalf("create testimonial: %v", err)
	}
	if err := f.testimonials.SetVisible(hidden.ID, false); err != nil {
		t.Fatalf("hide testimonial: %v", err)
	}

	rec := httptest.NewRecorder()
	f.handler.Home(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "Bienvenido a CIIPA") {
		t.Error("banner title missing from home page")
	}
	if !strings.Contains(body, "Visible") {
		t.Error("visible testimonial missing")
	}
	if strings.Contains(body, "Oculto") {
		t.Error("hidden testimonial rendered")
	}
}

func TestHomeUnknownPathIs404(t *testing.T) {
	f := setupPublicHandler(t)

	rec := httptest.NewRecorder()
	f.handler.Home(rec, httptest.NewRequest(http.MethodGet, "/no-such-page", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestProgramsShowsOnlyVisible(t *testing.T) {
	f := setupPublicHandler(t)

	if _, err := f.programStore.Create(model.Program{Name: "Contabilidad", Kind: model.ProgramCarrera, Duration: "3", Price: "500", Visible: true}); err != nil {
		t.Fatalf("create program: %v", err)
	}
	if _, err := f.programStore.Create(model.Program{Name: "Secreto", Kind: model.ProgramDiplomado, Duration: "1", Price: "100", Visible: false}); err != nil {
		t.Fatalf("create program: %v", err)
	}

	rec := httptest.NewRecorder()
	f.handler.Programs(rec, httptest.NewRequest(http.MethodGet, "/programas", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "Contabilidad") {
		t.Error("visible program missing")
	}
	if strings.Contains(body, "Secreto") {
		t.Error("hidden program rendered")
	}
}

func TestEnrollValid(t *testing.T) {
	f := setupPublicHandler(t)

	rec := httptest.NewRecorder()
	f.handler.Enroll(rec, postForm("/inscripcion", url.Values{
		"name":    {"Juan Pérez"},
		"program": {"Contabilidad"},
		"email":   {"juan@example.com"},
		"phone":   {"5512345678"},
	}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	list, err := f.enrollments.List()
	if err != nil {
		t.Fatalf("list enrollments: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("enrollments = %d, want 1", len(list))
	}
	if list[0].Name != "Juan Pérez" {
		t.Errorf("name = %q, want %q", list[0].Name, "Juan Pérez")
	}
}

func TestEnrollValidation(t *testing.T) {
	tests := []struct {
		name string
		form url.Values
	}{
		{"missing name", url.Values{"program": {"X"}, "email": {"a@b.com"}, "phone": {"5512345678"}}},
		{"missing program", url.Values{"name": {"Juan"}, "email": {"a@b.com"}, "phone": {"5512345678"}}},
		{"bad email", url.Values{"name": {"Juan"}, "program": {"X"}, "email": {"nope"}, "phone": {"5512345678"}}},
		{"short phone", url.Values{"name": {"Juan"}, "program": {"X"}, "email": {"a@example.com"}, "phone": {"12345"}}},
		{"phone with letters", url.Values{"name": {"Juan"}, "program": {"X"}, "email": {"a@example.com"}, "phone": {"55123456ab"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupPublicHandler(t)

			rec := httptest.NewRecorder()
			f.handler.Enroll(rec, postForm("/inscripcion", tt.form))

			if rec.Code != http.StatusSeeOther {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
			}
			list, err := f.enrollments.List()
			if err != nil {
				t.Fatalf("list enrollments: %v", err)
			}
			if len(list) != 0 {
				t.Errorf("enrollment recorded despite %s", tt.name)
			}
		})
	}
}
