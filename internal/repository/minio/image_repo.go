package minio

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
)

// ImageRepo реализует хранилище изображений поверх MinIO.
type ImageRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewImageRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ImageRepo {
	return &ImageRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// Upload загружает изображение в MinIO и возвращает ключ объекта с публичной ссылкой.
func (i *ImageRepo) Upload(ctx context.Context, image *domain.Image) (*usecase.StoredObject, error) {
	reader := bytes.NewReader(image.Bytes)

	info, err := i.mc.PutObject(ctx, i.cfg.BucketName, image.ObjectKey, reader, image.Size, minio.PutObjectOptions{
		ContentType: image.MimeType,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), classifyError(err))
	}

	url := i.cfg.PublicURL + "/" + i.cfg.BucketName + "/" + info.Key

	return usecase.NewStoredObject(info.Key, url, ""), nil
}

// Delete удаляет объект из MinIO по указанному ключу.
func (i *ImageRepo) Delete(ctx context.Context, key string) error {
	if err := i.mc.RemoveObject(ctx, i.cfg.BucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return e.Wrap(whereami.WhereAmI(), classifyError(err))
	}

	return nil
}

// classifyError переводит ошибки MinIO в ошибки хранилища.
// Исчерпание квоты бакета отличается от прочих сбоев бэкенда.
func classifyError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "QuotaExceeded" || resp.Code == "XMinioAdminBucketQuotaExceeded" {
		return fmt.Errorf("%w: %v", e.ErrQuotaExceeded, err)
	}

	return fmt.Errorf("%w: %v", e.ErrBackendUnavailable, err)
}
