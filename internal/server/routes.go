package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route
	if s.app.WSHandler != nil {
		mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)
	}

	// API routes - Ensembles
	mux.HandleFunc("/api/ensembles", s.app.EnsembleHandler.EnsemblesHandler)       // GET (list), POST (create)
	mux.HandleFunc("/api/ensembles/", s.app.EnsembleHandler.EnsembleRoutesHandler) // GET/DELETE /{id}, POST /{id}/analyze, GET /{id}/results
	mux.HandleFunc("/api/results/", s.app.EnsembleHandler.ResultHandler)           // GET /{id}

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}
