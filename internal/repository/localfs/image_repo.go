package localfs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/jimlawless/whereami"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/spf13/afero"
)

// ImageRepo реализует хранилище изображений поверх локальной файловой системы.
type ImageRepo struct {
	fs  afero.Fs
	cfg *cfg.LocalCfg
}

func NewImageRepo(fs afero.Fs, cfg *cfg.LocalCfg) *ImageRepo {
	return &ImageRepo{
		fs:  fs,
		cfg: cfg,
	}
}

// Upload записывает изображение на диск и возвращает ключ с публичной ссылкой.
func (i *ImageRepo) Upload(ctx context.Context, image *domain.Image) (*usecase.StoredObject, error) {
	if err := i.fs.MkdirAll(filepath.Dir(image.ObjectKey), 0o755); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), classifyError(err))
	}

	if err := afero.WriteFile(i.fs, image.ObjectKey, image.Bytes, 0o644); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), classifyError(err))
	}

	url := i.cfg.PublicURL + "/i/" + image.ObjectKey

	return usecase.NewStoredObject(image.ObjectKey, url, ""), nil
}

// Delete удаляет файл изображения. Отсутствие файла не считается ошибкой.
func (i *ImageRepo) Delete(ctx context.Context, key string) error {
	if err := i.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return e.Wrap(whereami.WhereAmI(), classifyError(err))
	}

	return nil
}

// classifyError переводит ошибки файловой системы в ошибки хранилища.
// Переполнение диска считается исчерпанием квоты.
func classifyError(err error) error {
	if errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT) {
		return fmt.Errorf("%w: %v", e.ErrQuotaExceeded, err)
	}

	return fmt.Errorf("%w: %v", e.ErrBackendUnavailable, err)
}
