package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
	failName string
	delErr   error
	blockDel bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{uploaded: make(map[string][]byte)}
}

func (f *fakeStore) Upload(ctx context.Context, img *domain.Image) (*usecase.StoredObject, error) {
	if f.failName != "" && img.OriginalName == f.failName {
		return nil, e.ErrBackendUnavailable
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded[img.ObjectKey] = img.Bytes

	return usecase.NewStoredObject(img.ObjectKey, "http://cdn.test/"+img.ObjectKey, ""), nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error {
	if f.blockDel {
		<-ctx.Done()
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, key)

	return nil
}

func (f *fakeStore) uploadedKeys() map[string][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make(map[string][]byte, len(f.uploaded))
	for k, v := range f.uploaded {
		keys[k] = v
	}

	return keys
}

func (f *fakeStore) deletedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.deleted...)
}

func newTestInfra(store usecase.ImageStore, shutdownCtx context.Context) *Infrastructure {
	return NewInfrastructure(store, &cfg.UploadCfg{ConcurrentUploads: 3}, logger.Nop(), shutdownCtx)
}

func uploadReq(n int) *usecase.UploadImagesReq {
	images := make([]usecase.UploadImage, 0, n)
	for i := 0; i < n; i++ {
		images = append(images, usecase.UploadImage{
			Data:      []byte{byte(i)},
			MimeType:  "image/png",
			Extension: "png",
			Size:      1,
			Name:      fmt.Sprintf("photo-%d.png", i),
		})
	}

	return usecase.NewUploadImagesReq(images)
}

func TestUploadImagesPreservesOrder(t *testing.T) {
	store := newFakeStore()
	infra := newTestInfra(store, context.Background())

	req := uploadReq(5)
	res, err := infra.UploadImages(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Images, 5)

	for i, img := range res.Images {
		assert.Equal(t, req.Images[i].Name, img.Name)
		assert.True(t, strings.HasPrefix(img.ObjectKey, "images/"))
		assert.True(t, strings.HasSuffix(img.ObjectKey, ".png"))
		assert.Equal(t, "http://cdn.test/"+img.ObjectKey, img.URL)
	}
}

func TestUploadImagesGeneratesUniqueIDs(t *testing.T) {
	store := newFakeStore()
	infra := newTestInfra(store, context.Background())

	res, err := infra.UploadImages(context.Background(), uploadReq(20))
	require.NoError(t, err)

	ids := make(map[string]struct{}, len(res.Images))
	for _, img := range res.Images {
		assert.NotEmpty(t, img.ID)
		ids[img.ID] = struct{}{}
	}
	assert.Len(t, ids, 20)
}

func TestUploadImagesFallsBackToMimeExtension(t *testing.T) {
	store := newFakeStore()
	infra := newTestInfra(store, context.Background())

	req := usecase.NewUploadImagesReq([]usecase.UploadImage{
		{Data: []byte{1}, MimeType: "image/webp", Size: 1, Name: "noext"},
	})

	res, err := infra.UploadImages(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Images, 1)
	assert.True(t, strings.HasSuffix(res.Images[0].ObjectKey, ".webp"))
	assert.Equal(t, "webp", res.Images[0].Extension)
}

func TestUploadImagesRejectsUnknownMime(t *testing.T) {
	store := newFakeStore()
	infra := newTestInfra(store, context.Background())

	req := usecase.NewUploadImagesReq([]usecase.UploadImage{
		{Data: []byte{1}, MimeType: "application/pdf", Size: 1, Name: "doc"},
	})

	_, err := infra.UploadImages(context.Background(), req)
	require.ErrorIs(t, err, e.ErrUnsupportedFormat)
	assert.Empty(t, store.uploadedKeys())
}

func TestUploadImagesFailureTriggersCleanup(t *testing.T) {
	store := newFakeStore()
	store.failName = "photo-2.png"
	infra := newTestInfra(store, context.Background())

	_, err := infra.UploadImages(context.Background(), uploadReq(5))
	require.ErrorIs(t, err, e.ErrBackendUnavailable)

	// дождаться фоновой компенсации
	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, infra.WaitForCleanup(waitCtx))

	// удаляться могут только реально загруженные ключи
	uploaded := store.uploadedKeys()
	for _, key := range store.deletedKeys() {
		_, ok := uploaded[key]
		assert.True(t, ok, "cleanup removed unknown key %s", key)
	}
}

func TestCleanupImagesDeletesKeys(t *testing.T) {
	store := newFakeStore()
	infra := newTestInfra(store, context.Background())

	infra.CleanupImages([]string{"images/a.png", "images/b.png"})

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, infra.WaitForCleanup(waitCtx))

	assert.Equal(t, []string{"images/a.png", "images/b.png"}, store.deletedKeys())
}

func TestCleanupImagesIgnoresEmptyKeys(t *testing.T) {
	store := newFakeStore()
	infra := newTestInfra(store, context.Background())

	infra.CleanupImages(nil)

	waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, infra.WaitForCleanup(waitCtx))
	assert.Empty(t, store.deletedKeys())
}

func TestCleanupStopsOnShutdown(t *testing.T) {
	store := newFakeStore()
	store.delErr = e.ErrBackendUnavailable

	shutdownCtx, shutdown := context.WithCancel(context.Background())
	shutdown() // приложение уже останавливается

	infra := newTestInfra(store, shutdownCtx)
	infra.CleanupImages([]string{"images/a.png"})

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, infra.WaitForCleanup(waitCtx))
}

func TestWaitForCleanupTimesOut(t *testing.T) {
	store := newFakeStore()
	store.blockDel = true

	shutdownCtx, shutdown := context.WithCancel(context.Background())
	t.Cleanup(shutdown)

	infra := newTestInfra(store, shutdownCtx)
	infra.CleanupImages([]string{"images/a.png"})

	waitCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, infra.WaitForCleanup(waitCtx))
}
