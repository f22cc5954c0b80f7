package converter

import "time"

// ImageInfoRedisModel — JSON-представление метаданных изображения в кэше.
// Токен удаления в кэш не записывается.
type ImageInfoRedisModel struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	DeleteURL    string    `json:"delete_url,omitempty"`
	OriginalName string    `json:"original_name"`
	Extension    string    `json:"extension"`
	MimeType     string    `json:"mime_type"`
	SizeBytes    int64     `json:"size_bytes"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
