package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ciipa/plataforma/internal/auth"
	"github.com/ciipa/plataforma/internal/backup"
	"github.com/ciipa/plataforma/internal/config"
	"github.com/ciipa/plataforma/internal/email"
	"github.com/ciipa/plataforma/internal/handler"
	"github.com/ciipa/plataforma/internal/middleware"
	"github.com/ciipa/plataforma/internal/store"
	"github.com/ciipa/plataforma/internal/upload"
	ws "github.com/ciipa/plataforma/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	publicH       *handler.PublicHandler
	authH         *handler.AuthHandler
	dashboardH    *handler.DashboardHandler
	contentH      *handler.ContentHandler
	userH         *handler.UserHandler
	backupH       *handler.BackupHandler
	sessionStore  *store.SessionStore
	userStore     *store.UserStore
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	uploadDir     string
	logger        *slog.Logger
}

// New wires stores, the backup manager, and handlers. restart is called
// after a successful restore to cycle the process onto the restored file.
func New(db *sql.DB, cfg config.Config, emailClient *email.Client, tokens *auth.Tokens, restart func(), logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	homeStore := store.NewHomeStore(db)
	programStore := store.NewProgramStore(db)
	galleryStore := store.NewGalleryStore(db)
	testimonialStore := store.NewTestimonialStore(db)
	enrollmentStore := store.NewEnrollmentStore(db)

	saver := upload.NewSaver(cfg.UploadDir)
	renderer := handler.NewRenderer(cfg.Templates, logger.With("component", "template"))

	backupMgr := backup.NewManager(backup.Config{
		DBPath: cfg.DBPath,
		Dir:    cfg.BackupsDir,
	}, db, func(s backup.Status) {
		hub.Broadcast(ws.Event{
			Type: "backup_status",
			Extra: map[string]any{
				"state":       string(s.State),
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	}, logger.With("component", "backup"))

	return &Server{
		db:  db,
		hub: hub,
		publicH: handler.NewPublicHandler(
			homeStore, programStore, galleryStore, testimonialStore,
			enrollmentStore, hub, renderer, logger.With("component", "public"),
		),
		authH: handler.NewAuthHandler(
			userStore, sessionStore, tokens, emailClient, renderer,
			cfg.BaseURL, logger.With("component", "auth"),
		),
		dashboardH: handler.NewDashboardHandler(
			programStore, enrollmentStore, userStore, renderer,
			logger.With("component", "dashboard"),
		),
		contentH: handler.NewContentHandler(
			homeStore, programStore, galleryStore, testimonialStore,
			saver, renderer, logger.With("component", "content"),
		),
		userH: handler.NewUserHandler(
			userStore, enrollmentStore, renderer, logger.With("component", "users"),
		),
		backupH: handler.NewBackupHandler(
			backupMgr, renderer, restart, logger.With("component", "backup_handler"),
		),
		sessionStore:  sessionStore,
		userStore:     userStore,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		uploadDir:     cfg.UploadDir,
		logger:        logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /{$}", s.publicH.Home)
	outerMux.HandleFunc("GET /programas", s.publicH.Programs)
	outerMux.HandleFunc("GET /galeria", s.publicH.Gallery)
	outerMux.HandleFunc("GET /inscripcion", s.publicH.EnrollPage)
	outerMux.HandleFunc("POST /inscripcion", s.publicH.Enroll)

	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /login", s.rateLimited(s.authH.Login))
	outerMux.HandleFunc("GET /twofactor", s.authH.TwoFactorPage)
	outerMux.HandleFunc("POST /twofactor", s.rateLimited(s.authH.TwoFactorConfirm))
	outerMux.HandleFunc("GET /register", s.authH.RegisterPage)
	outerMux.HandleFunc("POST /register", s.rateLimited(s.authH.Register))
	outerMux.HandleFunc("GET /reset", s.authH.ResetRequestPage)
	outerMux.HandleFunc("POST /reset", s.rateLimited(s.authH.ResetRequest))
	outerMux.HandleFunc("GET /reset/{token}", s.authH.ResetPasswordPage)
	outerMux.HandleFunc("POST /reset/{token}", s.rateLimited(s.authH.ResetPassword))

	outerMux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Authenticated routes
	authedMux := http.NewServeMux()
	authedMux.HandleFunc("POST /logout", s.authH.Logout)
	authedMux.HandleFunc("GET /dashboard", s.dashboardH.Dashboard)

	// Admin routes — one guard wraps them all
	adminMux := http.NewServeMux()
	s.registerAdminRoutes(adminMux)
	authedMux.Handle("/admin/", middleware.RequireAdmin(adminMux))
	authedMux.Handle("GET /ws", middleware.RequireAdmin(ws.Handle(s.hub, s.logger.With("component", "websocket"))))

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(authedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/portada", s.contentH.HomeContentPage)
	mux.HandleFunc("POST /admin/portada", s.contentH.HomeContentSave)

	mux.HandleFunc("GET /admin/programas", s.contentH.ProgramsPage)
	mux.HandleFunc("POST /admin/programas", s.contentH.ProgramCreate)
	mux.HandleFunc("POST /admin/programas/{id}", s.contentH.ProgramUpdate)
	mux.HandleFunc("POST /admin/programas/{id}/visible", s.contentH.ProgramToggle)
	mux.HandleFunc("POST /admin/programas/{id}/eliminar", s.contentH.ProgramDelete)

	mux.HandleFunc("GET /admin/galeria", s.contentH.GalleryPage)
	mux.HandleFunc("POST /admin/galeria", s.contentH.GalleryUpload)
	mux.HandleFunc("POST /admin/galeria/{id}/visible", s.contentH.GalleryToggle)
	mux.HandleFunc("POST /admin/galeria/{id}/eliminar", s.contentH.GalleryDelete)

	mux.HandleFunc("GET /admin/testimonios", s.contentH.TestimonialsPage)
	mux.HandleFunc("POST /admin/testimonios", s.contentH.TestimonialCreate)
	mux.HandleFunc("POST /admin/testimonios/{id}", s.contentH.TestimonialUpdate)
	mux.HandleFunc("POST /admin/testimonios/{id}/visible", s.contentH.TestimonialToggle)
	mux.HandleFunc("POST /admin/testimonios/{id}/eliminar", s.contentH.TestimonialDelete)

	mux.HandleFunc("GET /admin/usuarios", s.userH.UsersPage)
	mux.HandleFunc("POST /admin/usuarios", s.userH.UserCreate)
	mux.HandleFunc("GET /admin/inscripciones", s.userH.EnrollmentsPage)

	mux.HandleFunc("GET /admin/respaldo", s.backupH.BackupPage)
	mux.HandleFunc("POST /admin/respaldo/crear", s.backupH.BackupCreate)
	mux.HandleFunc("GET /admin/respaldo/descargar/{name}", s.backupH.BackupDownload)
	mux.HandleFunc("POST /admin/respaldo/restaurar", s.backupH.BackupRestore)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
