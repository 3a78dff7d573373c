// Package server exposes an [editor.Editor] over HTTP.
//
// The render layer is an external collaborator: it reads state from
// GET /api/state (or the /ws stream, which pushes a fresh snapshot after every
// committed operation) and calls the JSON operation endpoints in response to
// user input. It never mutates nodes or edges directly.
//
// Mutation endpoints answer {"applied": bool, "version": n}; operations the
// store ignores (stale ids, cycles, no-op updates) report applied=false with
// status 200, mirroring the store's silent no-op contract. Errors use
// {"error": {"code": ..., "message": ...}} with a status derived from the
// error code.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/ammusto/tafarru3/pkg/editor"
	"github.com/ammusto/tafarru3/pkg/history"
	"github.com/ammusto/tafarru3/pkg/store"
)

// Options configures a Server.
type Options struct {
	// AllowedOrigins lists origins accepted for WebSocket upgrades. Empty
	// allows same-origin requests only; "*" allows any origin.
	AllowedOrigins []string
	// Metrics receives request and editor metrics. Nil creates a fresh set.
	Metrics *Metrics
	Logger  *log.Logger
}

// Server routes HTTP requests to one editor.
type Server struct {
	editor   *editor.Editor
	router   chi.Router
	hub      *hub
	metrics  *Metrics
	upgrader websocket.Upgrader
	logger   *log.Logger

	cancelStore   func()
	cancelHistory func()
}

// New creates a server for ed and subscribes to its store and history.
func New(ed *editor.Editor, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	m := opts.Metrics
	if m == nil {
		m = NewMetrics()
	}
	s := &Server{
		editor:   ed,
		metrics:  m,
		hub:      newHub(m, logger),
		upgrader: upgrader,
		logger:   logger,
	}
	s.upgrader.CheckOrigin = checkOrigin(opts.AllowedOrigins)

	s.cancelStore = ed.Store.Subscribe(func(_, next *store.State) {
		s.hub.broadcast(Message{Type: "state", State: next})
	})
	s.cancelHistory = ed.History.Subscribe(func(st history.Status) {
		s.hub.broadcast(Message{Type: "history", History: &st})
	})

	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())
	r.Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/document", s.handleGetDocument)
		r.Put("/document", s.handlePutDocument)
		r.Delete("/document", s.handleClearDocument)
		r.Get("/export.csv", s.handleExportCSV)
		r.Post("/import/csv", s.handleImportCSV)
		r.Get("/template.csv", s.handleTemplate)
		r.Post("/layout", s.handleLayout)
		r.Post("/keys", s.handleKey)
		r.Put("/project", s.handleProject)

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", s.handleAddNode)
			r.Patch("/", s.handleUpdateNodes)
			r.Post("/delete", s.handleDeleteNodes)
			r.Post("/move", s.handleMoveNodes)
			r.Post("/align", s.handleAlign)
			r.Post("/distribute", s.handleDistribute)
			r.Patch("/{id}", s.handleUpdateNode)
			r.Delete("/{id}", s.handleDeleteNode)
			r.Put("/{id}/position", s.handleMoveNode)
			r.Put("/{id}/size", s.handleResizeNode)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Post("/", s.handleConnect)
			r.Patch("/", s.handleUpdateEdges)
			r.Post("/delete", s.handleDeleteEdges)
			r.Patch("/{id}", s.handleUpdateEdge)
			r.Delete("/{id}", s.handleDeleteEdge)
		})

		r.Route("/selection", func(r chi.Router) {
			r.Put("/", s.handleSetSelection)
			r.Delete("/", s.handleClearSelection)
			r.Post("/delete", s.handleDeleteSelected)
		})
		r.Put("/mode", s.handleMode)
		r.Put("/grid", s.handleGrid)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", s.handleHistory)
			r.Post("/undo", s.handleUndo)
			r.Post("/redo", s.handleRedo)
			r.Post("/begin", s.handleBeginInteraction)
			r.Post("/end", s.handleEndInteraction)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleSaveSession)
			r.Post("/{name}/open", s.handleOpenSession)
			r.Delete("/{name}", s.handleDeleteSession)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close unsubscribes from the editor and disconnects WebSocket clients. The
// editor itself is left open.
func (s *Server) Close() {
	s.cancelStore()
	s.cancelHistory()
	s.hub.closeAll()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}
