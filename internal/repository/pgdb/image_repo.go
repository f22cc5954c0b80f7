package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/internal/repository/pgdb/converter"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/tr"
)

// ImageRepo реализует репозиторий метаданных изображений поверх PostgreSQL.
type ImageRepo struct {
	pool *pgxpool.Pool
	conv converter.ImageConverter
}

func NewImageRepo(pool *pgxpool.Pool, conv converter.ImageConverter) *ImageRepo {
	return &ImageRepo{
		pool: pool,
		conv: conv,
	}
}

// CreateBatch сохраняет метаданные загруженных изображений в рамках транзакции из контекста.
func (r *ImageRepo) CreateBatch(ctx context.Context, images []*domain.Image) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO images (
			id,
			original_name,
			object_key,
			extension,
			mime_type,
			size_bytes,
			url,
			delete_url,
			delete_token,
			uploaded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, img := range images {
		model := r.conv.ToModel(img)

		if _, err := tx.Exec(ctx, query,
			model.ID,
			model.OriginalName,
			model.ObjectKey,
			model.Extension,
			model.MimeType,
			model.SizeBytes,
			model.URL,
			model.DeleteURL,
			model.DeleteToken,
			model.UploadedAt,
		); err != nil {
			if postgresDuplicate(err) {
				return fmt.Errorf("%s: image with id %s already exists", whereami.WhereAmI(), img.ID)
			}

			return fmt.Errorf("%s: failed to insert image: %w", whereami.WhereAmI(), err)
		}
	}

	return nil
}

// GetByID возвращает метаданные изображения по идентификатору.
// Помеченные удалёнными записи не возвращаются.
func (r *ImageRepo) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	query := `
		SELECT
			id, original_name, object_key, extension, mime_type, size_bytes,
			url, delete_url, delete_token, uploaded_at
		FROM images
		WHERE id = $1 AND deleted_at IS NULL
	`

	var model converter.ImageModel
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&model.ID,
		&model.OriginalName,
		&model.ObjectKey,
		&model.Extension,
		&model.MimeType,
		&model.SizeBytes,
		&model.URL,
		&model.DeleteURL,
		&model.DeleteToken,
		&model.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrImageNotFound)
		}

		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToEntity(&model), nil
}

// List возвращает последние загруженные изображения, новые первыми.
func (r *ImageRepo) List(ctx context.Context, limit int) ([]*domain.Image, error) {
	query := `
		SELECT
			id, original_name, object_key, extension, mime_type, size_bytes,
			url, delete_url, delete_token, uploaded_at
		FROM images
		WHERE deleted_at IS NULL
		ORDER BY uploaded_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	models := make([]*converter.ImageModel, 0, limit)
	for rows.Next() {
		var model converter.ImageModel

		err := rows.Scan(
			&model.ID,
			&model.OriginalName,
			&model.ObjectKey,
			&model.Extension,
			&model.MimeType,
			&model.SizeBytes,
			&model.URL,
			&model.DeleteURL,
			&model.DeleteToken,
			&model.UploadedAt,
		)
		if err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		models = append(models, &model)
	}

	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return r.conv.ToArrEntity(models), nil
}

// MarkDeleted помечает изображение удалённым в рамках транзакции из контекста.
func (r *ImageRepo) MarkDeleted(ctx context.Context, id string) error {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		UPDATE images
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := tx.Exec(ctx, query, id)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if result.RowsAffected() == 0 {
		return e.Wrap(whereami.WhereAmI(), e.ErrImageNotFound)
	}

	return nil
}
