package usecase

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
	"github.com/pixloft/go-backend/pkg/tr"
)

// ImageUseCase реализует бизнес-логику загрузки и управления изображениями.
type ImageUseCase struct {
	imageRepo  ImageRepository
	outboxRepo OutboxRepository
	dbPool     transaction.Transactional
	storage    StorageInfra
	cacheRepo  CacheRepository
	uploadCfg  *cfg.UploadCfg
	logger     logger.Logger
}

func NewImageUC(
	imageRepo ImageRepository,
	outboxRepo OutboxRepository,
	dbPool transaction.Transactional,
	storage StorageInfra,
	cacheRepo CacheRepository,
	uploadCfg *cfg.UploadCfg,
	logger logger.Logger,
) *ImageUseCase {
	return &ImageUseCase{
		imageRepo:  imageRepo,
		outboxRepo: outboxRepo,
		dbPool:     dbPool,
		storage:    storage,
		cacheRepo:  cacheRepo,
		uploadCfg:  uploadCfg,
		logger:     logger,
	}
}

// UploadImages обрабатывает загрузку изображений: валидация, сохранение байтов
// в бэкенд хранилища, запись метаданных и события outbox в одной транзакции.
// Бэкенд вызывается ровно один раз на изображение, без повторов.
func (u *ImageUseCase) UploadImages(ctx context.Context, req *UploadImagesReq) (*UploadImagesRes, error) {
	const op = "ImageUseCase.UploadImages"

	// Валидация данных до обращения к бэкенду хранилища
	var err error
	err = u.validateImages(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	var (
		storedRes *StorageUploadRes
		uploaded  bool
	)

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, u.dbPool)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	// Если произошла ошибка, происходит Rollback транзакции и очистка загруженных изображений
	defer func() {
		if err != nil {
			if tx.IsActive() {
				tx.Rollback(ctx)
			}

			if uploaded && storedRes != nil {
				u.logger.Warnf(
					"Cleaning up orphaned images after transaction failure: %v",
					e.Wrap(op, err),
				)

				u.storage.CleanupImages(storedKeys(storedRes))
			}
		}
	}()
	ctx = tr.CtxWithTx(ctx, tx.Transaction().(pgx.Tx))

	// Сохранение изображений в бэкенд хранилища
	storedRes, err = u.storage.UploadImages(ctx, req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	uploaded = true

	images := u.toDomainImages(storedRes)

	// Сохранение метаданных
	err = u.imageRepo.CreateBatch(ctx, images)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Событие outbox на каждое изображение в той же транзакции
	err = u.createEvents(ctx, EventImageUploaded, images)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	// Коммит изменений в бд
	err = tx.Commit(ctx)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	infos := NewImageInfos(images)

	// Фоновое кэширование метаданных
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := u.cacheRepo.SetImages(bgCtx, infos); err != nil {
			u.logger.Warnf("Failed to cache images in background: %v", e.Wrap(op, err))
		}
	}()

	res := &UploadImagesRes{Images: make([]UploadedImage, 0, len(images))}
	for i, info := range infos {
		res.Images = append(res.Images, UploadedImage{
			ImageInfo:   info,
			DeleteToken: images[i].DeleteToken,
		})
	}

	return res, nil
}

// GetImage возвращает метаданные изображения по его идентификатору.
func (u *ImageUseCase) GetImage(ctx context.Context, id string) (*ImageInfo, error) {
	const op = "ImageUseCase.GetImage"

	if strings.TrimSpace(id) == "" {
		return nil, e.Wrap(op, e.ErrImageNotFound)
	}

	// Поиск в кэше; промах или ошибка кэша ведут в базу
	cached, err := u.cacheRepo.GetImages(ctx, []string{id})
	if err == nil {
		if info, ok := cached[id]; ok {
			return &info, nil
		}
	}

	img, err := u.imageRepo.GetByID(ctx, id)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	info := NewImageInfo(img)

	// Фоновое добавление в кэш
	go func() {
		bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		if err := u.cacheRepo.SetImages(bgCtx, []ImageInfo{info}); err != nil {
			u.logger.Warnf("Failed to cache image in background: %v", e.Wrap(op, err))
		}
	}()

	return &info, nil
}

// ListImages возвращает метаданные последних загруженных изображений.
func (u *ImageUseCase) ListImages(ctx context.Context, limit int) ([]ImageInfo, error) {
	const (
		op           = "ImageUseCase.ListImages"
		defaultLimit = 20
		maxLimit     = 100
	)

	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	images, err := u.imageRepo.List(ctx, limit)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	return NewImageInfos(images), nil
}

// DeleteImage удаляет изображение по токену: объект убирается из бэкенда,
// запись помечается удалённой, событие уходит через outbox.
func (u *ImageUseCase) DeleteImage(ctx context.Context, req *DeleteImageReq) error {
	const op = "ImageUseCase.DeleteImage"

	var err error
	img, err := u.imageRepo.GetByID(ctx, req.ID)
	if err != nil {
		return e.Wrap(op, err)
	}

	if req.Token == "" || img.DeleteToken != req.Token {
		return e.Wrap(op, e.ErrInvalidDeleteToken)
	}

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, u.dbPool)
	if err != nil {
		return e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			tx.Rollback(ctx)
		}
	}()
	ctx = tr.CtxWithTx(ctx, tx.Transaction().(pgx.Tx))

	err = u.imageRepo.MarkDeleted(ctx, img.ID)
	if err != nil {
		return e.Wrap(op, err)
	}

	err = u.createEvents(ctx, EventImageDeleted, []*domain.Image{img})
	if err != nil {
		return e.Wrap(op, err)
	}

	// Удаление объекта из бэкенда. Одна попытка: при сбое транзакция
	// откатывается и запись остаётся.
	err = u.storage.DeleteImage(ctx, img.ObjectKey)
	if err != nil {
		return e.Wrap(op, err)
	}

	err = tx.Commit(ctx)
	if err != nil {
		return e.Wrap(op, err)
	}

	if err := u.cacheRepo.DeleteImages(ctx, []string{img.ID}); err != nil {
		u.logger.Warnf("Failed to delete image from cache: %v", e.Wrap(op, err))
	}

	return nil
}

// toDomainImages превращает результат загрузки в доменные записи
// с токеном удаления и временем загрузки.
func (u *ImageUseCase) toDomainImages(res *StorageUploadRes) []*domain.Image {
	now := time.Now().UTC()

	images := make([]*domain.Image, 0, len(res.Images))
	for _, stored := range res.Images {
		img := domain.NewImage(stored.ID, stored.Name, stored.ObjectKey, stored.Extension, stored.MimeType, stored.Size, nil)
		img.URL = stored.URL
		img.DeleteURL = stored.DeleteURL
		img.DeleteToken = uuid.NewString()
		img.UploadedAt = now
		images = append(images, img)
	}

	return images
}

// createEvents кладёт событие указанного типа по каждому изображению в outbox.
func (u *ImageUseCase) createEvents(ctx context.Context, eventType OutboxEventType, images []*domain.Image) error {
	for _, img := range images {
		eventID := uuid.NewString()

		payload, err := json.Marshal(NewImageEventPayload(eventID, eventType, img))
		if err != nil {
			return err
		}

		if _, err := u.outboxRepo.Create(ctx, NewOutboxEvent(eventID, eventType, img.ID, payload)); err != nil {
			return err
		}
	}

	return nil
}

// validateImages проверяет количество изображений и каждое изображение
// до какого-либо обращения к бэкенду хранилища.
func (u *ImageUseCase) validateImages(req *UploadImagesReq) error {
	if req == nil || len(req.Images) == 0 {
		return e.ErrNoImages
	}

	if !u.uploadCfg.BatchEnabled && len(req.Images) > 1 {
		return e.ErrTooManyImages
	}

	if len(req.Images) > u.uploadCfg.MaxBatchSize {
		return e.ErrTooManyImages
	}

	for i := range req.Images {
		if err := u.validateImage(&req.Images[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateImage проверяет формат (по имени файла и по содержимому) и размер.
// Фактический MIME-тип и каноническое расширение записываются обратно в изображение.
func (u *ImageUseCase) validateImage(img *UploadImage) error {
	if len(img.Data) == 0 {
		return e.Wrap(img.Name, e.ErrMalformedRequest)
	}

	img.Size = int64(len(img.Data))
	if img.Size > u.uploadCfg.MaxFileSize {
		return e.Wrap(img.Name, e.ErrFileTooLarge)
	}

	// Расширение из имени файла, если оно есть, должно входить в список разрешённых
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(img.Name)), "."); ext != "" {
		if !u.uploadCfg.FormatAllowed(ext) {
			return e.Wrap(img.Name, e.ErrUnsupportedFormat)
		}
	}

	// Фактический формат определяется по содержимому
	mtype := mimetype.Detect(img.Data)
	ext := strings.TrimPrefix(mtype.Extension(), ".")
	if !u.uploadCfg.FormatAllowed(ext) {
		return e.Wrap(img.Name, e.ErrUnsupportedFormat)
	}

	img.MimeType = mtype.String()
	img.Extension = ext

	return nil
}

func storedKeys(res *StorageUploadRes) []string {
	keys := make([]string, 0, len(res.Images))
	for _, img := range res.Images {
		keys = append(keys, img.ObjectKey)
	}

	return keys
}
