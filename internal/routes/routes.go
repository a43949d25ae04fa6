package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/clickfit/clickfit/internal/app"
	"github.com/clickfit/clickfit/internal/handler"
	"github.com/clickfit/clickfit/internal/middleware"
	"github.com/clickfit/clickfit/internal/storage"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	upload := handler.NewUploadHandler(app.AssetService)
	users := handler.NewUserHandler(app.UserService)
	health := handler.NewHealthHandler(app.DB, app.Cfg.DBDriver, app.UserService, app.AssetService)

	mux := http.NewServeMux()

	// ============================================================================
	// UPLOADS
	// ============================================================================

	mux.HandleFunc("POST /upload", upload.Upload)
	mux.HandleFunc("POST /upload-multiple", upload.UploadMultiple)
	mux.HandleFunc("DELETE /delete/{filename}", upload.Delete)
	mux.HandleFunc("GET /images", upload.List)

	// Local locators resolve against the upload root
	if files, ok := storage.Files(app.Storage); ok {
		mux.HandleFunc("GET /"+app.Cfg.Upload.PublicRoute()+"/{filename}", handler.ServeUploads(files))
	}

	// ============================================================================
	// USERS
	// ============================================================================

	mux.HandleFunc("GET /api/users", users.List)
	mux.HandleFunc("POST /api/users", users.Create)
	mux.HandleFunc("GET /api/users/{id}", users.Get)

	// ============================================================================
	// OPERATIONS
	// ============================================================================

	mux.HandleFunc("GET /health", health.Health)
	mux.HandleFunc("GET /api/db-status", health.DBStatus)
	mux.Handle("GET /metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))

	// Catch-all JSON 404
	mux.HandleFunc("/{path...}", handler.NotFound)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: app.Cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Recover,
		middleware.RequestLogging,
		corsHandler.Handler,
		middleware.Timeout(app.Cfg.RequestTimeout),
		middleware.Config(app.Cfg),
	)
}
