package http

import (
	"net/http"
	"sort"
	"time"

	"github.com/pixloft/go-backend/internal/cfg"
)

type HealthHandler struct {
	appCfg    *cfg.AppCfg
	uploadCfg *cfg.UploadCfg
	startTime time.Time
}

func NewHealthHandler(appCfg *cfg.AppCfg, uploadCfg *cfg.UploadCfg) *HealthHandler {
	return &HealthHandler{
		appCfg:    appCfg,
		uploadCfg: uploadCfg,
		startTime: time.Now(),
	}
}

// health
//
//	@Summary	Проверка живости сервиса
//	@Tags		service
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/health [get]
func (h *HealthHandler) health(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"service":   h.appCfg.ServiceName,
		"version":   h.appCfg.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// info
//
//	@Summary	Публичные лимиты загрузки
//	@Tags		service
//	@Produce	json
//	@Success	200	{object}	map[string]interface{}
//	@Router		/info [get]
func (h *HealthHandler) info(w http.ResponseWriter, _ *http.Request) {
	formats := make([]string, 0, len(h.uploadCfg.AllowedFormats))
	for ext := range h.uploadCfg.AllowedFormats {
		formats = append(formats, ext)
	}
	sort.Strings(formats)

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"service":          h.appCfg.ServiceName,
		"version":          h.appCfg.Version,
		"max_file_size_mb": h.uploadCfg.MaxSizeMB(),
		"max_batch_size":   h.uploadCfg.MaxBatchSize,
		"batch_enabled":    h.uploadCfg.BatchEnabled,
		"allowed_formats":  formats,
	})
}
