package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- тестовые данные ---

func pngBytes(padding int) []byte {
	sig := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	return append(sig, make([]byte, padding)...)
}

func jpegBytes(padding int) []byte {
	sig := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	return append(sig, make([]byte, padding)...)
}

func zipBytes() []byte {
	return append([]byte{'P', 'K', 0x03, 0x04}, make([]byte, 64)...)
}

func testUploadCfg() *cfg.UploadCfg {
	return &cfg.UploadCfg{
		MaxFileSize:  5 << 20,
		MaxBatchSize: 10,
		BatchEnabled: true,
		AllowedFormats: map[string]bool{
			"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
		},
	}
}

// --- фейковая транзакция pgx ---

type fakeTx struct {
	mu        sync.Mutex
	commits   int
	rollbacks int
}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }

func (t *fakeTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rollbacks++
	return nil
}

func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *fakeTx) Conn() *pgx.Conn                                               { return nil }

type fakeDB struct {
	tx       *fakeTx
	beginErr error
}

func (d *fakeDB) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	return d.tx, nil
}

// --- фейковое хранилище ---

type fakeStorage struct {
	mu          sync.Mutex
	uploadCalls int
	deleteCalls int
	deletedKeys []string
	cleanupKeys [][]string
	uploadErr   error
	deleteErr   error
}

func (s *fakeStorage) UploadImages(ctx context.Context, req *UploadImagesReq) (*StorageUploadRes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.uploadCalls++
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}

	stored := make([]StoredImage, 0, len(req.Images))
	for _, img := range req.Images {
		id := uuid.NewString()
		key := "images/" + id + "." + img.Extension
		stored = append(stored, StoredImage{
			ID:        id,
			ObjectKey: key,
			URL:       "http://cdn.test/" + key,
			Extension: img.Extension,
			MimeType:  img.MimeType,
			Size:      img.Size,
			Name:      img.Name,
		})
	}

	return NewStorageUploadRes(stored), nil
}

func (s *fakeStorage) DeleteImage(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteCalls++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletedKeys = append(s.deletedKeys, key)
	return nil
}

func (s *fakeStorage) CleanupImages(keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupKeys = append(s.cleanupKeys, keys)
}

func (s *fakeStorage) cleanupCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cleanupKeys)
}

// --- фейковый репозиторий метаданных ---

type fakeImageRepo struct {
	mu        sync.Mutex
	images    map[string]*domain.Image
	createErr error
	deleted   []string
}

func newFakeImageRepo() *fakeImageRepo {
	return &fakeImageRepo{images: make(map[string]*domain.Image)}
}

func (r *fakeImageRepo) CreateBatch(ctx context.Context, images []*domain.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	for _, img := range images {
		r.images[img.ID] = img
	}
	return nil
}

func (r *fakeImageRepo) GetByID(ctx context.Context, id string) (*domain.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, ok := r.images[id]
	if !ok {
		return nil, e.ErrImageNotFound
	}
	cp := *img
	return &cp, nil
}

func (r *fakeImageRepo) List(ctx context.Context, limit int) ([]*domain.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]*domain.Image, 0, limit)
	for _, img := range r.images {
		if len(result) == limit {
			break
		}
		cp := *img
		result = append(result, &cp)
	}
	return result, nil
}

func (r *fakeImageRepo) MarkDeleted(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, id)
	return nil
}

// --- фейковый outbox ---

type fakeOutboxRepo struct {
	mu     sync.Mutex
	nextID int64
	events []*OutboxEvent
}

func (o *fakeOutboxRepo) Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	event.ID = o.nextID
	o.events = append(o.events, event)
	return event, nil
}

func (o *fakeOutboxRepo) GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	return nil, nil
}

func (o *fakeOutboxRepo) MarkAsProcessed(ctx context.Context, id int64) error { return nil }

// --- фейковый кэш ---

type fakeCache struct {
	mu     sync.Mutex
	images map[string]ImageInfo
	sets   int
	dels   []string
	getErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{images: make(map[string]ImageInfo)}
}

func (c *fakeCache) GetImages(ctx context.Context, ids []string) (map[string]ImageInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return nil, c.getErr
	}
	result := make(map[string]ImageInfo)
	for _, id := range ids {
		if info, ok := c.images[id]; ok {
			result[id] = info
		}
	}
	return result, nil
}

func (c *fakeCache) SetImages(ctx context.Context, images []ImageInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sets++
	for _, info := range images {
		c.images[info.ID] = info
	}
	return nil
}

func (c *fakeCache) DeleteImages(ctx context.Context, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dels = append(c.dels, ids...)
	return nil
}

func (c *fakeCache) setCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

// --- обвязка ---

type ucFixture struct {
	uc      *ImageUseCase
	repo    *fakeImageRepo
	outbox  *fakeOutboxRepo
	storage *fakeStorage
	cache   *fakeCache
	tx      *fakeTx
}

func newUCFixture(uploadCfg *cfg.UploadCfg) *ucFixture {
	f := &ucFixture{
		repo:    newFakeImageRepo(),
		outbox:  &fakeOutboxRepo{},
		storage: &fakeStorage{},
		cache:   newFakeCache(),
		tx:      &fakeTx{},
	}
	f.uc = NewImageUC(f.repo, f.outbox, &fakeDB{tx: f.tx}, f.storage, f.cache, uploadCfg, logger.Nop())
	return f
}

// --- тесты загрузки ---

func TestUploadImagesHappyPath(t *testing.T) {
	f := newUCFixture(testUploadCfg())

	req := NewUploadImagesReq([]UploadImage{
		*NewUploadImage(pngBytes(500), "image/png", 508, "photo.png"),
	})

	res, err := f.uc.UploadImages(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Images, 1)

	img := res.Images[0]
	assert.NotEmpty(t, img.ID)
	assert.NotEmpty(t, img.DeleteToken)
	assert.Equal(t, "png", img.Extension)
	assert.Equal(t, "image/png", img.MimeType)
	assert.Contains(t, img.URL, img.ID)
	assert.True(t, strings.HasSuffix(img.URL, ".png"))

	assert.Equal(t, 1, f.tx.commits)
	assert.Equal(t, 0, f.tx.rollbacks)
	assert.Len(t, f.repo.images, 1)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, EventImageUploaded, f.outbox.events[0].EventType)
	assert.Equal(t, img.ID, f.outbox.events[0].ImageID)
	assert.Equal(t, Pending, f.outbox.events[0].Status)
}

func TestUploadImagesRejectsUnsupportedFormat(t *testing.T) {
	f := newUCFixture(testUploadCfg())

	req := NewUploadImagesReq([]UploadImage{
		*NewUploadImage(zipBytes(), "application/zip", 68, "archive.zip"),
	})

	_, err := f.uc.UploadImages(context.Background(), req)
	require.ErrorIs(t, err, e.ErrUnsupportedFormat)

	// бэкенд хранилища не должен вызываться при ошибке валидации
	assert.Equal(t, 0, f.storage.uploadCalls)
	assert.Empty(t, f.outbox.events)
}

func TestUploadImagesRejectsMismatchedExtension(t *testing.T) {
	f := newUCFixture(testUploadCfg())

	// имя разрешённое, содержимое — нет
	req := NewUploadImagesReq([]UploadImage{
		*NewUploadImage(zipBytes(), "image/png", 68, "archive.png"),
	})

	_, err := f.uc.UploadImages(context.Background(), req)
	require.ErrorIs(t, err, e.ErrUnsupportedFormat)
	assert.Equal(t, 0, f.storage.uploadCalls)
}

func TestUploadImagesRejectsOversizedFile(t *testing.T) {
	uploadCfg := testUploadCfg()
	uploadCfg.MaxFileSize = 1 << 10 // 1 KiB

	f := newUCFixture(uploadCfg)

	req := NewUploadImagesReq([]UploadImage{
		*NewUploadImage(jpegBytes(2<<10), "image/jpeg", 2<<10, "huge.jpg"),
	})

	_, err := f.uc.UploadImages(context.Background(), req)
	require.ErrorIs(t, err, e.ErrFileTooLarge)
	assert.Equal(t, 0, f.storage.uploadCalls)
}

func TestUploadImagesRejectsEmptyRequest(t *testing.T) {
	f := newUCFixture(testUploadCfg())

	_, err := f.uc.UploadImages(context.Background(), NewUploadImagesReq(nil))
	require.ErrorIs(t, err, e.ErrNoImages)
}

func TestUploadImagesRejectsBatchOverLimit(t *testing.T) {
	uploadCfg := testUploadCfg()
	uploadCfg.MaxBatchSize = 2

	f := newUCFixture(uploadCfg)

	images := make([]UploadImage, 3)
	for i := range images {
		images[i] = *NewUploadImage(pngBytes(10), "image/png", 18, "p.png")
	}

	_, err := f.uc.UploadImages(context.Background(), NewUploadImagesReq(images))
	require.ErrorIs(t, err, e.ErrTooManyImages)
}

func TestUploadImagesRejectsBatchWhenDisabled(t *testing.T) {
	uploadCfg := testUploadCfg()
	uploadCfg.BatchEnabled = false

	f := newUCFixture(uploadCfg)

	images := []UploadImage{
		*NewUploadImage(pngBytes(10), "image/png", 18, "a.png"),
		*NewUploadImage(pngBytes(10), "image/png", 18, "b.png"),
	}

	_, err := f.uc.UploadImages(context.Background(), NewUploadImagesReq(images))
	require.ErrorIs(t, err, e.ErrTooManyImages)
}

func TestUploadImagesSingleAttemptOnBackendFailure(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.storage.uploadErr = e.ErrBackendUnavailable

	req := NewUploadImagesReq([]UploadImage{
		*NewUploadImage(pngBytes(100), "image/png", 108, "photo.png"),
	})

	_, err := f.uc.UploadImages(context.Background(), req)
	require.ErrorIs(t, err, e.ErrBackendUnavailable)

	// ровно одна попытка, без повторов
	assert.Equal(t, 1, f.storage.uploadCalls)
	assert.Equal(t, 1, f.tx.rollbacks)
	assert.Equal(t, 0, f.tx.commits)
	assert.Empty(t, f.repo.images)
	assert.Empty(t, f.outbox.events)
}

func TestUploadImagesCompensatesAfterMetadataFailure(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.repo.createErr = errors.New("insert failed")

	req := NewUploadImagesReq([]UploadImage{
		*NewUploadImage(pngBytes(100), "image/png", 108, "photo.png"),
	})

	_, err := f.uc.UploadImages(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, 1, f.tx.rollbacks)
	require.Equal(t, 1, f.storage.cleanupCalls())
	require.Len(t, f.storage.cleanupKeys[0], 1)
	assert.Contains(t, f.storage.cleanupKeys[0][0], "images/")
}

func TestUploadImagesQuotaExceededPassesThrough(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.storage.uploadErr = e.ErrQuotaExceeded

	req := NewUploadImagesReq([]UploadImage{
		*NewUploadImage(pngBytes(100), "image/png", 108, "photo.png"),
	})

	_, err := f.uc.UploadImages(context.Background(), req)
	require.ErrorIs(t, err, e.ErrQuotaExceeded)
	assert.Equal(t, 1, f.storage.uploadCalls)
}

// --- тесты чтения ---

func TestGetImageFromCache(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.cache.images["abc"] = ImageInfo{ID: "abc", URL: "http://cdn.test/images/abc.png"}

	info, err := f.uc.GetImage(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/images/abc.png", info.URL)
}

func TestGetImageFallsBackToRepo(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.repo.images["abc"] = &domain.Image{ID: "abc", URL: "http://cdn.test/images/abc.png"}

	info, err := f.uc.GetImage(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", info.ID)

	// фоновое кэширование должно отработать
	require.Eventually(t, func() bool {
		return f.cache.setCalls() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestGetImageIgnoresCacheError(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.cache.getErr = errors.New("redis down")
	f.repo.images["abc"] = &domain.Image{ID: "abc"}

	info, err := f.uc.GetImage(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", info.ID)
}

func TestGetImageNotFound(t *testing.T) {
	f := newUCFixture(testUploadCfg())

	_, err := f.uc.GetImage(context.Background(), "missing")
	require.ErrorIs(t, err, e.ErrImageNotFound)
}

func TestListImagesClampsLimit(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	for i := 0; i < 5; i++ {
		id := uuid.NewString()
		f.repo.images[id] = &domain.Image{ID: id}
	}

	infos, err := f.uc.ListImages(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, infos, 3)
}

// --- тесты удаления ---

func TestDeleteImageWithValidToken(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.repo.images["abc"] = &domain.Image{
		ID:          "abc",
		ObjectKey:   "images/abc.png",
		DeleteToken: "secret",
	}

	err := f.uc.DeleteImage(context.Background(), NewDeleteImageReq("abc", "secret"))
	require.NoError(t, err)

	assert.Equal(t, []string{"images/abc.png"}, f.storage.deletedKeys)
	assert.Equal(t, []string{"abc"}, f.repo.deleted)
	assert.Equal(t, 1, f.tx.commits)
	assert.Equal(t, []string{"abc"}, f.cache.dels)

	require.Len(t, f.outbox.events, 1)
	assert.Equal(t, EventImageDeleted, f.outbox.events[0].EventType)
}

func TestDeleteImageRejectsWrongToken(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.repo.images["abc"] = &domain.Image{ID: "abc", DeleteToken: "secret"}

	err := f.uc.DeleteImage(context.Background(), NewDeleteImageReq("abc", "wrong"))
	require.ErrorIs(t, err, e.ErrInvalidDeleteToken)

	assert.Equal(t, 0, f.storage.deleteCalls)
	assert.Empty(t, f.repo.deleted)
}

func TestDeleteImageRejectsEmptyToken(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.repo.images["abc"] = &domain.Image{ID: "abc", DeleteToken: ""}

	err := f.uc.DeleteImage(context.Background(), NewDeleteImageReq("abc", ""))
	require.ErrorIs(t, err, e.ErrInvalidDeleteToken)
}

func TestDeleteImageRollsBackOnBackendFailure(t *testing.T) {
	f := newUCFixture(testUploadCfg())
	f.repo.images["abc"] = &domain.Image{ID: "abc", ObjectKey: "images/abc.png", DeleteToken: "secret"}
	f.storage.deleteErr = e.ErrBackendUnavailable

	err := f.uc.DeleteImage(context.Background(), NewDeleteImageReq("abc", "secret"))
	require.ErrorIs(t, err, e.ErrBackendUnavailable)

	assert.Equal(t, 1, f.tx.rollbacks)
	assert.Equal(t, 0, f.tx.commits)
}

func TestDeleteImageNotFound(t *testing.T) {
	f := newUCFixture(testUploadCfg())

	err := f.uc.DeleteImage(context.Background(), NewDeleteImageReq("missing", "tok"))
	require.ErrorIs(t, err, e.ErrImageNotFound)
}
