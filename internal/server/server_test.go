package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ciipa/plataforma/internal/auth"
	"github.com/ciipa/plataforma/internal/config"
	"github.com/ciipa/plataforma/internal/database"
	"github.com/ciipa/plataforma/internal/email"
	"github.com/ciipa/plataforma/internal/middleware"
	"github.com/ciipa/plataforma/internal/model"
	"github.com/ciipa/plataforma/internal/store"
)

var routerPages = []string{
	"index.html", "programs.html", "gallery.html", "enroll.html",
	"login.html", "twofactor.html", "register.html",
	"reset_request.html", "reset_password.html",
	"dashboard_student.html", "dashboard_admin.html",
	"admin_home.html", "admin_programs.html", "admin_gallery.html",
	"admin_testimonials.html", "admin_users.html",
	"admin_enrollments.html", "admin_backup.html",
}

func setupServer(t *testing.T) (*Server, *store.UserStore) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range routerPages {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatalf("write stub template: %v", err)
		}
	}

	dbPath := filepath.Join(dir, "test.db")
	db, err := database.Open(dbPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		Port:       "0",
		BaseURL:    "http://localhost",
		DBPath:     dbPath,
		BackupsDir: filepath.Join(dir, "backups"),
		UploadDir:  filepath.Join(dir, "img"),
		Templates:  filepath.Join(dir, "*.html"),
		SecretKey:  "test-secret",
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := New(db, cfg, email.NewClient("", "no-reply@ciipa.com"), auth.NewTokens(cfg.SecretKey), func() {}, logger)
	return srv, store.NewUserStore(db)
}

func TestPublicRoutesServe(t *testing.T) {
	srv, _ := setupServer(t)
	router := srv.Router()

	for _, path := range []string{"/", "/programas", "/galeria", "/inscripcion", "/login", "/register", "/reset", "/health"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestDashboardRequiresLogin(t *testing.T) {
	srv, _ := setupServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("location = %q, want /login", loc)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	srv, userStore := setupServer(t)
	router := srv.Router()

	hash, err := auth.HashPassword("Secreta1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	student, err := userStore.Create("alumno@example.com", hash, model.RoleStudent)
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	sess, err := srv.SessionStore().Create(student.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	paths := []string{"/admin/portada", "/admin/programas", "/admin/respaldo", "/admin/usuarios"}
	for _, path := range paths {
		// Anonymous: bounced to login.
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
			t.Errorf("anonymous GET %s = %d -> %q, want 303 -> /login", path, rec.Code, rec.Header().Get("Location"))
		}

		// Student: bounced to the dashboard.
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sess.Token})
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
			t.Errorf("student GET %s = %d -> %q, want 303 -> /dashboard", path, rec.Code, rec.Header().Get("Location"))
		}
	}
}

func TestAdminRoutesServeForAdmin(t *testing.T) {
	srv, userStore := setupServer(t)
	router := srv.Router()

	hash, err := auth.HashPassword("Admin123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	admin, err := userStore.Create("admin@ciipa.com", hash, model.RoleAdmin)
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	sess, err := srv.SessionStore().Create(admin.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	for _, path := range []string{"/admin/portada", "/admin/programas", "/admin/galeria", "/admin/testimonios", "/admin/usuarios", "/admin/inscripciones", "/admin/respaldo"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: sess.Token})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("admin GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := setupServer(t)
	router := srv.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}
