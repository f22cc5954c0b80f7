package usecase

import (
	"time"

	"github.com/pixloft/go-backend/internal/domain"
)

// IMAGE USECASE

// UploadImage представляет изображение, принятое из любого канала доставки
// (multipart-форма, JSON с base64, Telegram).
type UploadImage struct {
	Data      []byte // байты изображения
	MimeType  string // заявленный Content-Type; после валидации — фактический
	Extension string // каноническое расширение без точки; заполняется валидацией
	Size      int64  // фактический размер в байтах
	Name      string // оригинальное имя файла (для логов и метаданных)
}

// UploadImagesReq — запрос на загрузку изображений.
type UploadImagesReq struct {
	Images []UploadImage
}

// UploadImagesRes — ответ на загрузку. Порядок совпадает с порядком запроса.
type UploadImagesRes struct {
	Images []UploadedImage
}

// UploadedImage — элемент ответа на загрузку. Токен удаления возвращается
// только в момент загрузки и больше нигде не отдаётся.
type UploadedImage struct {
	ImageInfo
	DeleteToken string
}

// ImageInfo — DTO с информацией об изображении для внешнего использования.
type ImageInfo struct {
	ID           string
	URL          string
	DeleteURL    string
	OriginalName string
	Extension    string
	MimeType     string
	Size         int64
	UploadedAt   time.Time
}

// DeleteImageReq — запрос на удаление изображения по токену.
type DeleteImageReq struct {
	ID    string
	Token string
}

// INFRASTRUCTURE

// StoredObject — результат сохранения объекта в бэкенде хранилища.
type StoredObject struct {
	Key       string // ключ объекта в бэкенде
	URL       string // публичная ссылка на изображение
	DeleteURL string // ссылка на удаление у провайдера, если он её выдаёт
}

// StoredImage — результат сохранения одного изображения вместе с метаданными.
type StoredImage struct {
	ID        string
	ObjectKey string
	URL       string
	DeleteURL string
	Extension string
	MimeType  string
	Size      int64
	Name      string
}

// StorageUploadRes — результат пакетной загрузки в бэкенд хранилища.
type StorageUploadRes struct {
	Images []StoredImage
}

type WriteRawMessageReq struct {
	ImageID string
	Payload []byte
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEventType string

const (
	EventImageUploaded OutboxEventType = "image.uploaded"
	EventImageDeleted  OutboxEventType = "image.deleted"
)

// OutboxEvent — событие для транзакционного outbox.
type OutboxEvent struct {
	ID          int64
	EventID     string // uuid
	EventType   OutboxEventType
	ImageID     string
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// ImageEventPayload — JSON-тело события об изображении для Kafka.
type ImageEventPayload struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	ImageID    string    `json:"image_id"`
	ObjectKey  string    `json:"object_key"`
	URL        string    `json:"url"`
	SizeBytes  int64     `json:"size_bytes"`
	MimeType   string    `json:"mime_type"`
	OccurredAt time.Time `json:"occurred_at"`
}

// MAPPERS

func NewUploadImage(data []byte, mimeType string, size int64, name string) *UploadImage {
	return &UploadImage{
		Data:     data,
		MimeType: mimeType,
		Size:     size,
		Name:     name,
	}
}

func NewUploadImagesReq(images []UploadImage) *UploadImagesReq {
	return &UploadImagesReq{Images: images}
}

func NewStoredObject(key, url, deleteURL string) *StoredObject {
	return &StoredObject{
		Key:       key,
		URL:       url,
		DeleteURL: deleteURL,
	}
}

func NewStorageUploadRes(images []StoredImage) *StorageUploadRes {
	return &StorageUploadRes{Images: images}
}

func NewDeleteImageReq(id, token string) *DeleteImageReq {
	return &DeleteImageReq{ID: id, Token: token}
}

func NewWriteRawMessageReq(imageID string, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		ImageID: imageID,
		Payload: payload,
	}
}

func NewOutboxEvent(eventID string, eventType OutboxEventType, imageID string, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:   eventID,
		EventType: eventType,
		ImageID:   imageID,
		Payload:   payload,
		Status:    Pending,
		CreatedAt: time.Now().UTC(),
	}
}

func NewImageEventPayload(eventID string, eventType OutboxEventType, img *domain.Image) *ImageEventPayload {
	return &ImageEventPayload{
		EventID:    eventID,
		EventType:  string(eventType),
		ImageID:    img.ID,
		ObjectKey:  img.ObjectKey,
		URL:        img.URL,
		SizeBytes:  img.Size,
		MimeType:   img.MimeType,
		OccurredAt: time.Now().UTC(),
	}
}

func NewImageInfo(img *domain.Image) ImageInfo {
	return ImageInfo{
		ID:           img.ID,
		URL:          img.URL,
		DeleteURL:    img.DeleteURL,
		OriginalName: img.OriginalName,
		Extension:    img.Extension,
		MimeType:     img.MimeType,
		Size:         img.Size,
		UploadedAt:   img.UploadedAt,
	}
}

func NewImageInfos(images []*domain.Image) []ImageInfo {
	infos := make([]ImageInfo, 0, len(images))
	for _, img := range images {
		infos = append(infos, NewImageInfo(img))
	}

	return infos
}
