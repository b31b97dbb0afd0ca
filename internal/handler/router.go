package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(viewerHandler *ViewerHandler, explorerHandler *ExplorerHandler, middleware func(http.Handler) http.Handler) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "pdf-page-viewer"})
	}).Methods("GET")

	// API prefix
	api := router.PathPrefix("/api/v1").Subrouter()
	if middleware != nil {
		api.Use(middleware)
	}

	// Event stream stays outside the compressed subrouter so it can flush.
	api.HandleFunc("/viewers/{id}/events", viewerHandler.StreamEvents).Methods("GET")

	routes := api.PathPrefix("").Subrouter()
	routes.Use(Compress)

	// Viewer routes
	routes.HandleFunc("/viewers", viewerHandler.CreateViewer).Methods("POST")
	routes.HandleFunc("/viewers/{id}", viewerHandler.GetViewer).Methods("GET")
	routes.HandleFunc("/viewers/{id}", viewerHandler.DeleteViewer).Methods("DELETE")
	routes.HandleFunc("/viewers/{id}/locator", viewerHandler.SetLocator).Methods("PUT")
	routes.HandleFunc("/viewers/{id}/scale", viewerHandler.SetScale).Methods("PUT")
	routes.HandleFunc("/viewers/{id}/zoom-in", viewerHandler.ZoomIn).Methods("POST")
	routes.HandleFunc("/viewers/{id}/zoom-out", viewerHandler.ZoomOut).Methods("POST")
	routes.HandleFunc("/viewers/{id}/scroll", viewerHandler.Scroll).Methods("POST")
	routes.HandleFunc("/viewers/{id}/resize", viewerHandler.Resize).Methods("POST")
	routes.HandleFunc("/viewers/{id}/pages/{page}", viewerHandler.GetPage).Methods("GET")
	routes.HandleFunc("/viewers/{id}/pages/{page}/text", viewerHandler.GetPageText).Methods("GET")
	routes.HandleFunc("/viewers/{id}/pages/{page}/goto", viewerHandler.GoToPage).Methods("POST")

	// Explorer routes; the static paths come before /documents/{id}.
	routes.HandleFunc("/nodes/{id}/children", explorerHandler.GetChildren).Methods("GET")
	routes.HandleFunc("/documents/search", explorerHandler.SearchDocuments).Methods("GET")
	routes.HandleFunc("/documents/cache", explorerHandler.ClearCache).Methods("DELETE")
	routes.HandleFunc("/documents/{id}", explorerHandler.GetDocument).Methods("GET")
	routes.HandleFunc("/documents/{id}/cache", explorerHandler.EvictDocument).Methods("DELETE")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // SvelteKit dev server
			"http://localhost:4173", // SvelteKit preview
			"http://localhost:3000", // Alternative dev port
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		ExposedHeaders: []string{
			"X-Page-Scale",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}
