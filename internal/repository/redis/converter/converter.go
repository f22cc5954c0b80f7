package converter

import (
	"github.com/pixloft/go-backend/internal/usecase"
)

// ImageInfoConverter преобразует метаданные изображения между usecase и моделью кэша.
type ImageInfoConverter interface {
	ToRedisModel(entity *usecase.ImageInfo) *ImageInfoRedisModel
	ToUseCase(model *ImageInfoRedisModel) *usecase.ImageInfo
	ToArrRedisModel(entities []usecase.ImageInfo) []ImageInfoRedisModel
	ToArrUseCase(models []ImageInfoRedisModel) []usecase.ImageInfo
}

type imageInfoConverter struct{}

func NewImageInfoConverter() ImageInfoConverter {
	return &imageInfoConverter{}
}

func (c *imageInfoConverter) ToRedisModel(entity *usecase.ImageInfo) *ImageInfoRedisModel {
	return &ImageInfoRedisModel{
		ID:           entity.ID,
		URL:          entity.URL,
		DeleteURL:    entity.DeleteURL,
		OriginalName: entity.OriginalName,
		Extension:    entity.Extension,
		MimeType:     entity.MimeType,
		SizeBytes:    entity.Size,
		UploadedAt:   entity.UploadedAt,
	}
}

func (c *imageInfoConverter) ToUseCase(model *ImageInfoRedisModel) *usecase.ImageInfo {
	return &usecase.ImageInfo{
		ID:           model.ID,
		URL:          model.URL,
		DeleteURL:    model.DeleteURL,
		OriginalName: model.OriginalName,
		Extension:    model.Extension,
		MimeType:     model.MimeType,
		Size:         model.SizeBytes,
		UploadedAt:   model.UploadedAt,
	}
}

func (c *imageInfoConverter) ToArrRedisModel(entities []usecase.ImageInfo) []ImageInfoRedisModel {
	models := make([]ImageInfoRedisModel, 0, len(entities))
	for i := range entities {
		models = append(models, *c.ToRedisModel(&entities[i]))
	}

	return models
}

func (c *imageInfoConverter) ToArrUseCase(models []ImageInfoRedisModel) []usecase.ImageInfo {
	entities := make([]usecase.ImageInfo, 0, len(models))
	for i := range models {
		entities = append(entities, *c.ToUseCase(&models[i]))
	}

	return entities
}
