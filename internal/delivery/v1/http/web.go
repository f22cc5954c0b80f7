package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
)

// Встроенная страница с формой загрузки.
//
//go:embed web/index.gohtml
var webFS embed.FS

type WebHandler struct {
	tmpl      *template.Template
	uploadCfg *cfg.UploadCfg
	appCfg    *cfg.AppCfg
	logger    logger.Logger
}

func NewWebHandler(appCfg *cfg.AppCfg, uploadCfg *cfg.UploadCfg, logger logger.Logger) (*WebHandler, error) {
	tmpl, err := template.ParseFS(webFS, "web/index.gohtml")
	if err != nil {
		return nil, e.Wrap("failed to parse index template", err)
	}

	return &WebHandler{
		tmpl:      tmpl,
		uploadCfg: uploadCfg,
		appCfg:    appCfg,
		logger:    logger,
	}, nil
}

func (h *WebHandler) index(w http.ResponseWriter, _ *http.Request) {
	data := struct {
		Service      string
		MaxSizeMB    int64
		MaxBatchSize int
		BatchEnabled bool
	}{
		Service:      h.appCfg.ServiceName,
		MaxSizeMB:    h.uploadCfg.MaxSizeMB(),
		MaxBatchSize: h.uploadCfg.MaxBatchSize,
		BatchEnabled: h.uploadCfg.BatchEnabled,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.Execute(w, data); err != nil {
		h.logger.Errorf(err, "failed to render index page")
	}
}
