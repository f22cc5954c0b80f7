package usecase

import "context"

type ImageUC interface {
	UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error)
	GetImage(ctx context.Context, id string) (*ImageInfo, error)
	ListImages(ctx context.Context, limit int) ([]ImageInfo, error)
	DeleteImage(ctx context.Context, req *DeleteImageReq) error
}
