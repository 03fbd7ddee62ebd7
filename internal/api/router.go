package api

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/leospirit/wecom-bulk-sender/internal/core"
	"github.com/leospirit/wecom-bulk-sender/internal/store"
	"github.com/leospirit/wecom-bulk-sender/web"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server holds the console HTTP server state.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	state      *core.State
	selection  *core.Selection
	dispatcher *core.Dispatcher
	store      *store.Store
	logger     *slog.Logger
	authToken  string
}

// NewServer constructs the console server.
func NewServer(addr string, authToken string, state *core.State, selection *core.Selection, dispatcher *core.Dispatcher, store *store.Store, logger *slog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	s := &Server{
		router:     router,
		state:      state,
		selection:  selection,
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
		authToken:  authToken,
	}
	s.registerRoutes(web.Files())

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	s.httpServer = httpServer
	return s, nil
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("console server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(staticFS fs.FS) {
	fileServer := http.StripPrefix("/assets/", http.FileServer(http.FS(staticFS)))

	s.router.Get("/", s.handleIndex(staticFS))
	s.router.Handle("/assets/*", fileServer)

	s.router.Route("/v1", func(r chi.Router) {
		if s.authToken != "" {
			r.Use(AuthMiddleware(s.authToken))
		}

		r.Get("/overview", s.handleOverview)
		r.Post("/selection/toggle", s.handleToggleSelection)

		r.Post("/scan", s.handleScan)
		r.Post("/send/batch", s.handleSendBatch)
		r.Post("/send/selected", s.handleSendSelected)
		r.Post("/auto-watch", s.handleAutoWatch)
		r.Post("/contacts", s.handleUploadContacts)
		r.Post("/config", s.handleSaveConfig)
		r.Post("/ip/check", s.handleCheckIP)

		r.Get("/history", s.handleHistory)
		r.Get("/actions", s.handleActions)
	})
}

func (s *Server) handleIndex(staticFS fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := staticFS.Open("index.html")
		if err != nil {
			http.Error(w, "index not found", http.StatusInternalServerError)
			return
		}
		defer file.Close()
		info, err := fs.Stat(staticFS, "index.html")
		modTime := time.Now()
		if err == nil {
			modTime = info.ModTime()
		}
		if reader, ok := file.(io.ReadSeeker); ok {
			http.ServeContent(w, r, "index.html", modTime, reader)
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "failed to load index", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, "index.html", modTime, bytes.NewReader(data))
	}
}
