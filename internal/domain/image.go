package domain

import "time"

// Image описывает загруженное изображение и его запись в хранилище
type Image struct {
	ID           string // uuid
	OriginalName string
	ObjectKey    string // ключ объекта в бэкенде хранилища
	Extension    string // без точки: png, jpg, webp...
	MimeType     string
	Size         int64 // размер в байтах
	URL          string
	DeleteURL    string // ссылка на удаление у провайдера, если он её выдаёт
	DeleteToken  string
	Bytes        []byte // содержимое файла; заполняется только на время загрузки
	UploadedAt   time.Time
	DeletedAt    *time.Time
}

func NewImage(id, originalName, objectKey, extension, mimeType string, size int64, data []byte) *Image {
	return &Image{
		ID:           id,
		OriginalName: originalName,
		ObjectKey:    objectKey,
		Extension:    extension,
		MimeType:     mimeType,
		Size:         size,
		Bytes:        data,
	}
}
