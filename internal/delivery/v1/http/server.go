package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/pixloft/go-backend/internal/cfg"
)

// Server — обёртка над http.Server с таймаутами из конфигурации.
type Server struct {
	srv *http.Server
}

func NewServer(handler http.Handler, cfg *cfg.HTTPConfig) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Run блокирует до остановки сервера. Штатное закрытие через Stop
// ошибкой не считается.
func (s *Server) Run() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Stop прекращает приём новых соединений и дожидается активных
// запросов в пределах переданного контекста.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
