package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/internal/infrastructure"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/jitter"
	"github.com/pixloft/go-backend/pkg/logger"
)

const (
	cleanupTimeout  = 30 * time.Second
	cleanupAttempts = 3
	cleanupBackoff  = time.Second
	cleanupMaxWait  = 8 * time.Second
)

// Infrastructure управляет загрузкой и очисткой изображений в выбранном бэкенде хранилища.
type Infrastructure struct {
	store             usecase.ImageStore
	logger            logger.Logger
	shutdownCtx       context.Context
	wg                sync.WaitGroup
	uploadImagesLimit int
}

func NewInfrastructure(store usecase.ImageStore, uploadCfg *cfg.UploadCfg, logger logger.Logger, shutdownCtx context.Context) *Infrastructure {
	return &Infrastructure{
		store:             store,
		logger:            logger,
		shutdownCtx:       shutdownCtx,
		wg:                sync.WaitGroup{},
		uploadImagesLimit: uploadCfg.ConcurrentUploads,
	}
}

type uploadResult struct {
	index  int
	stored usecase.StoredImage
}

// UploadImages загружает изображения в бэкенд параллельно с ограничением одновременных
// операций. Порядок результатов совпадает с порядком запроса. В случае ошибки отменяет
// остальные загрузки и запускает очистку уже загруженных файлов.
func (s *Infrastructure) UploadImages(ctx context.Context, req *usecase.UploadImagesReq) (*usecase.StorageUploadRes, error) {
	const op = "Infrastructure.UploadImages"
	// Отмена остальных загрузок при первой ошибке
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resCh := make(chan uploadResult, len(req.Images))
	errCh := make(chan error, len(req.Images))
	sem := make(chan struct{}, s.uploadImagesLimit)

	var uploadWg sync.WaitGroup
	for idx, image := range req.Images {
		uploadWg.Add(1)
		go func() {
			defer uploadWg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			imageID := uuid.NewString()
			ext := image.Extension
			if ext == "" {
				var err error
				ext, err = infrastructure.GetExtensionFromMIME(image.MimeType)
				if err != nil {
					errCh <- fmt.Errorf("invalid mime type %s for %s: %w", image.MimeType, image.Name, err)
					return
				}
			}
			objKey := fmt.Sprintf("images/%s.%s", imageID, ext)

			img := domain.NewImage(imageID, image.Name, objKey, ext, image.MimeType, image.Size, image.Data)
			stored, err := s.store.Upload(ctx, img)
			if err != nil {
				errCh <- fmt.Errorf("upload %s failed: %w", image.Name, err)
				return
			}

			resCh <- uploadResult{
				index: idx,
				stored: usecase.StoredImage{
					ID:        imageID,
					ObjectKey: stored.Key,
					URL:       stored.URL,
					DeleteURL: stored.DeleteURL,
					Extension: ext,
					MimeType:  image.MimeType,
					Size:      image.Size,
					Name:      image.Name,
				},
			}
		}()
	}

	go func() {
		uploadWg.Wait()
		close(errCh)
		close(resCh)
	}()

	stored := make([]usecase.StoredImage, len(req.Images))
	keys := make([]string, 0, len(req.Images))
	ok := false
	defer func() {
		if !ok && len(keys) > 0 {
			s.wg.Add(1)
			go s.cleanupUploadedKeys(keys)
		}
	}()

	for completed := 0; completed < len(req.Images); {
		select {
		case res, open := <-resCh:
			if open {
				stored[res.index] = res.stored
				keys = append(keys, res.stored.ObjectKey)
				completed++
			}
		case err, open := <-errCh:
			if open {
				cancel()
				return nil, e.Wrap(op, err)
			}
		case <-ctx.Done():
			cancel()
			return nil, e.Wrap(op, ctx.Err())
		}
	}

	ok = true
	return usecase.NewStorageUploadRes(stored), nil
}

// DeleteImage синхронно удаляет объект из бэкенда. Одна попытка, без повторов.
func (s *Infrastructure) DeleteImage(ctx context.Context, key string) error {
	const op = "Infrastructure.DeleteImage"

	if err := s.store.Delete(ctx, key); err != nil {
		return e.Wrap(op, err)
	}

	return nil
}

// CleanupImages запускает фоновую очистку указанных ключей в бэкенде
func (s *Infrastructure) CleanupImages(keys []string) {
	if len(keys) == 0 {
		return
	}
	s.wg.Add(1)
	go s.cleanupUploadedKeys(keys)
}

// cleanupUploadedKeys удаляет указанные объекты из бэкенда с экспоненциальной задержкой и jitter.
func (s *Infrastructure) cleanupUploadedKeys(keys []string) {
	defer s.wg.Done() // сигнализируем завершение компенсации
	const op = "Infrastructure.cleanupUploadedKeys"
	s.logger.Infof("%s: Cleaning up uploaded keys", op)

	// Создаём контекст с таймаутом на основе shutdownCtx
	ctx, cancel := context.WithTimeout(s.shutdownCtx, cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		for attempt := 0; attempt < cleanupAttempts; attempt++ {
			if err := s.store.Delete(ctx, key); err == nil {
				break // Успешно удалено
			}

			// Проверяем, не отменён ли контекст
			select {
			case <-ctx.Done():
				s.logger.Warnf("cleanup interrupted by shutdown, key=%v", key)
				return
			default:
			}

			if attempt < cleanupAttempts-1 {
				sleepTime := jitter.ExponentialBackoff(cleanupBackoff, cleanupMaxWait, attempt, jitter.DefaultJitter)

				select {
				case <-time.After(sleepTime):
				case <-ctx.Done():
					s.logger.Warnf("cleanup interrupted by shutdown during backoff, key=%v", key)
					return
				}
			}
		}
	}
}

// WaitForCleanup ожидает завершения всех фоновых задач очистки с учётом таймаута завершения приложения.
func (s *Infrastructure) WaitForCleanup(shutdownTimeoutCtx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-shutdownTimeoutCtx.Done():
		return fmt.Errorf("storage cleanup timeout during shutdown: %w", shutdownTimeoutCtx.Err())
	}
}
