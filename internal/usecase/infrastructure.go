package usecase

import "context"

// StorageInfra управляет загрузкой изображений в бэкенд хранилища
// и компенсационной очисткой при сбоях.
type StorageInfra interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*StorageUploadRes, error)
	DeleteImage(ctx context.Context, key string) error
	CleanupImages(keys []string)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}
