package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/yuvalr-dev/librarium/internal/api/handlers"
	"github.com/yuvalr-dev/librarium/internal/api/middlewares"
	"github.com/yuvalr-dev/librarium/internal/auth"
	"github.com/yuvalr-dev/librarium/internal/config"
	"github.com/yuvalr-dev/librarium/internal/core"
	"github.com/yuvalr-dev/librarium/internal/engine"
	"github.com/yuvalr-dev/librarium/internal/pipeline"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, obj core.ObjectClient, ing *pipeline.DocumentIngestor, eng *engine.Engine, gate *auth.Gate, resolver core.IdentityResolver) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	wsHandler := handlers.NewWorkspaceHandler(db, gate)
	docHandler := handlers.NewDocumentHandler(db, obj, ing, gate, cfg)
	queryHandler := handlers.NewQueryHandler(eng)
	adminHandler := handlers.NewAdminHandler(db, gate)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(middlewares.RequireAuth(resolver))
			// Uploads and query streams run long; don't cap them with
			// the default route timeout.
			protected.Use(middleware.Timeout(10 * time.Minute))

			protected.Route("/workspaces", func(ws chi.Router) {
				ws.Post("/", wsHandler.Create)
				ws.Get("/", wsHandler.List)
				ws.Route("/{workspaceID}", func(one chi.Router) {
					one.Get("/", wsHandler.Get)
					one.Put("/config", wsHandler.UpdateConfig)
					one.Delete("/", wsHandler.Delete)

					one.Post("/documents", docHandler.Upload)
					one.Get("/documents", docHandler.List)
					one.Get("/documents/{documentID}", docHandler.Get)
					one.Get("/documents/{documentID}/chunks", docHandler.Chunks)
					one.Delete("/documents/{documentID}", docHandler.Delete)

					one.Post("/query", queryHandler.Query)
				})
			})

			protected.Route("/admin", func(admin chi.Router) {
				admin.Post("/groups", adminHandler.CreateGroup)
				admin.Get("/groups", adminHandler.ListGroups)
				admin.Delete("/groups/{groupID}", adminHandler.DeleteGroup)
				admin.Put("/users/{userID}/groups", adminHandler.SetUserGroups)
				admin.Put("/workspaces/{workspaceID}/groups", adminHandler.SetWorkspaceGroups)
				admin.Get("/workspaces/{workspaceID}/groups", adminHandler.GetWorkspaceGroups)
				admin.Get("/access", adminHandler.ListAccess)
			})
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}
