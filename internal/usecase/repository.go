package usecase

import (
	"context"

	"github.com/pixloft/go-backend/internal/domain"
)

// ImageRepository — хранилище метаданных изображений в PostgreSQL.
type ImageRepository interface {
	CreateBatch(ctx context.Context, images []*domain.Image) error
	GetByID(ctx context.Context, id string) (*domain.Image, error)
	List(ctx context.Context, limit int) ([]*domain.Image, error)
	MarkDeleted(ctx context.Context, id string) error
}

// ImageStore — бэкенд хранения байтов изображения (MinIO, imgbb, локальный диск).
type ImageStore interface {
	Upload(ctx context.Context, image *domain.Image) (*StoredObject, error)
	Delete(ctx context.Context, key string) error
}

// OutboxRepository — транзакционный outbox событий.
type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
}

// CacheRepository — кэш метаданных изображений.
type CacheRepository interface {
	GetImages(ctx context.Context, ids []string) (map[string]ImageInfo, error)
	SetImages(ctx context.Context, images []ImageInfo) error
	DeleteImages(ctx context.Context, ids []string) error
}
