package converter

import (
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/internal/usecase"
)

// ImageConverter преобразует сущности Image между domain и моделью PostgreSQL.
type ImageConverter interface {
	ToModel(entity *domain.Image) *ImageModel
	ToEntity(model *ImageModel) *domain.Image
	ToArrEntity(models []*ImageModel) []*domain.Image
}

// OutboxEventConverter преобразует сущности OutboxEvent между usecase и моделью PostgreSQL.
type OutboxEventConverter interface {
	ToModel(entity *usecase.OutboxEvent) *OutboxEventModel
	ToEntity(model *OutboxEventModel) *usecase.OutboxEvent
	ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent
}

type imageConverter struct{}

func NewImageConverter() ImageConverter {
	return &imageConverter{}
}

func (c *imageConverter) ToModel(entity *domain.Image) *ImageModel {
	return &ImageModel{
		ID:           entity.ID,
		OriginalName: entity.OriginalName,
		ObjectKey:    entity.ObjectKey,
		Extension:    entity.Extension,
		MimeType:     entity.MimeType,
		SizeBytes:    entity.Size,
		URL:          entity.URL,
		DeleteURL:    entity.DeleteURL,
		DeleteToken:  entity.DeleteToken,
		UploadedAt:   entity.UploadedAt,
		DeletedAt:    entity.DeletedAt,
	}
}

func (c *imageConverter) ToEntity(model *ImageModel) *domain.Image {
	return &domain.Image{
		ID:           model.ID,
		OriginalName: model.OriginalName,
		ObjectKey:    model.ObjectKey,
		Extension:    model.Extension,
		MimeType:     model.MimeType,
		Size:         model.SizeBytes,
		URL:          model.URL,
		DeleteURL:    model.DeleteURL,
		DeleteToken:  model.DeleteToken,
		UploadedAt:   model.UploadedAt,
		DeletedAt:    model.DeletedAt,
	}
}

func (c *imageConverter) ToArrEntity(models []*ImageModel) []*domain.Image {
	entities := make([]*domain.Image, 0, len(models))
	for _, model := range models {
		entities = append(entities, c.ToEntity(model))
	}

	return entities
}

type outboxEventConverter struct{}

func NewOutboxEventConverter() OutboxEventConverter {
	return &outboxEventConverter{}
}

func (c *outboxEventConverter) ToModel(entity *usecase.OutboxEvent) *OutboxEventModel {
	return &OutboxEventModel{
		ID:          entity.ID,
		EventID:     entity.EventID,
		EventType:   entity.EventType,
		ImageID:     entity.ImageID,
		Payload:     entity.Payload,
		Status:      entity.Status,
		CreatedAt:   entity.CreatedAt,
		ProcessedAt: entity.ProcessedAt,
	}
}

func (c *outboxEventConverter) ToEntity(model *OutboxEventModel) *usecase.OutboxEvent {
	return &usecase.OutboxEvent{
		ID:          model.ID,
		EventID:     model.EventID,
		EventType:   model.EventType,
		ImageID:     model.ImageID,
		Payload:     model.Payload,
		Status:      model.Status,
		CreatedAt:   model.CreatedAt,
		ProcessedAt: model.ProcessedAt,
	}
}

func (c *outboxEventConverter) ToArrEntity(models []*OutboxEventModel) []*usecase.OutboxEvent {
	entities := make([]*usecase.OutboxEvent, 0, len(models))
	for _, model := range models {
		entities = append(entities, c.ToEntity(model))
	}

	return entities
}
