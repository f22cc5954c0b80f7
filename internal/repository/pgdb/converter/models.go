package converter

import (
	"time"

	"github.com/pixloft/go-backend/internal/usecase"
)

// ImageModel представляет запись таблицы images в PostgreSQL.
type ImageModel struct {
	ID           string     `db:"id"`
	OriginalName string     `db:"original_name"`
	ObjectKey    string     `db:"object_key"`
	Extension    string     `db:"extension"`
	MimeType     string     `db:"mime_type"`
	SizeBytes    int64      `db:"size_bytes"`
	URL          string     `db:"url"`
	DeleteURL    string     `db:"delete_url"`
	DeleteToken  string     `db:"delete_token"`
	UploadedAt   time.Time  `db:"uploaded_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64                   `db:"id"`
	EventID     string                  `db:"event_id"`
	EventType   usecase.OutboxEventType `db:"event_type"`
	ImageID     string                  `db:"image_id"`
	Payload     []byte                  `db:"payload"`
	Status      usecase.OutboxStatus    `db:"status"`
	CreatedAt   time.Time               `db:"created_at"`
	ProcessedAt *time.Time              `db:"processed_at"`
}
