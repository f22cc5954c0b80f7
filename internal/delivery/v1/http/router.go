package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/pixloft/go-backend/docs" // Импорт сгенерированных файлов
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

// Init регистрирует все маршруты сервиса. static отдаёт файлы локального
// бэкенда по /i/* и передаётся только при STORAGE_BACKEND=local.
func (r *Router) Init(imageUC usecase.ImageUC, appCfg *cfg.AppCfg, uploadCfg *cfg.UploadCfg, static http.Handler) error {
	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.RealIP)
	r.router.Use(middleware.Recoverer)

	r.router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteErrorMessage(w, http.StatusNotFound, "not found")
	})
	r.router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"), // ссылка на JSON
	))

	webHandler, err := NewWebHandler(appCfg, uploadCfg, r.logger)
	if err != nil {
		return e.Wrap("failed to init web handler", err)
	}
	r.router.Get("/", webHandler.index)
	r.router.Head("/", webHandler.index)

	healthHandler := NewHealthHandler(appCfg, uploadCfg)
	r.router.Get("/health", healthHandler.health)
	r.router.Get("/info", healthHandler.info)

	imgHandler := NewImageHandler(imageUC, uploadCfg, r.logger)

	// Короткий алиас для загрузки без версионного префикса.
	r.router.Post("/upload", imgHandler.uploadImages)

	r.router.Route("/api/v1", func(v1 chi.Router) {
		registerImageRoutes(v1, imgHandler)
	})

	if static != nil {
		r.router.Handle("/i/*", http.StripPrefix("/i/", static))
	}

	return nil
}

func registerImageRoutes(router chi.Router, imgHandler *ImageHandler) {
	router.Route("/images", func(img chi.Router) {
		img.Post("/", imgHandler.uploadImages)
		img.Get("/", imgHandler.listImages)
		img.Get("/{id}", imgHandler.getImage)
		img.Delete("/{id}", imgHandler.deleteImage)
	})
}
