package imgbb

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage() *domain.Image {
	return &domain.Image{
		ID:           "11111111-2222-3333-4444-555555555555",
		OriginalName: "photo.png",
		ObjectKey:    "images/11111111-2222-3333-4444-555555555555.png",
		MimeType:     "image/png",
		Size:         4,
		Bytes:        []byte{0x89, 'P', 'N', 'G'},
	}
}

func testRepo(url string) *ImageRepo {
	return NewImageRepo(&cfg.ImgBBCfg{
		APIKey:    "test-key",
		UploadURL: url,
		Timeout:   5 * time.Second,
	})
}

func TestUploadSendsFormAndParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "test-key", r.FormValue("key"))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()

		assert.Equal(t, "photo.png", header.Filename)

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"success": true,
			"status": 200,
			"data": {
				"id": "aBcDeF1",
				"url": "https://i.ibb.co/aBcDeF1/photo.png",
				"delete_url": "https://ibb.co/aBcDeF1/tok"
			}
		}`))
	}))
	defer srv.Close()

	stored, err := testRepo(srv.URL).Upload(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, "aBcDeF1", stored.Key)
	assert.Equal(t, "https://i.ibb.co/aBcDeF1/photo.png", stored.URL)
	assert.Equal(t, "https://ibb.co/aBcDeF1/tok", stored.DeleteURL)
}

func TestUploadMapsQuotaErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"success": false, "status": 429, "error": {"message": "Rate limit reached", "code": 429}}`))
	}))
	defer srv.Close()

	_, err := testRepo(srv.URL).Upload(context.Background(), testImage())
	require.ErrorIs(t, err, e.ErrQuotaExceeded)
}

func TestUploadMapsQuotaMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success": false, "status": 400, "error": {"message": "Upload quota exceeded", "code": 120}}`))
	}))
	defer srv.Close()

	_, err := testRepo(srv.URL).Upload(context.Background(), testImage())
	require.ErrorIs(t, err, e.ErrQuotaExceeded)
}

func TestUploadMapsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testRepo(srv.URL).Upload(context.Background(), testImage())
	require.ErrorIs(t, err, e.ErrBackendUnavailable)
}

func TestUploadMapsProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "status": 400, "error": {"message": "Invalid API key", "code": 100}}`))
	}))
	defer srv.Close()

	_, err := testRepo(srv.URL).Upload(context.Background(), testImage())
	require.ErrorIs(t, err, e.ErrBackendUnavailable)
}

func TestUploadMapsNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // сервер недоступен ещё до запроса

	_, err := testRepo(srv.URL).Upload(context.Background(), testImage())
	require.ErrorIs(t, err, e.ErrBackendUnavailable)
}

func TestDeleteIsNoOp(t *testing.T) {
	repo := testRepo("http://imgbb.invalid")

	require.NoError(t, repo.Delete(context.Background(), "aBcDeF1"))
}
