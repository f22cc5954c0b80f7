package imgbb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/jimlawless/whereami"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/domain"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
)

// Ответ ImgBB читается целиком, но не больше этого размера.
const maxResponseSize = 1 << 20

// ImageRepo реализует хранилище изображений поверх сервиса ImgBB.
type ImageRepo struct {
	client *http.Client
	cfg    *cfg.ImgBBCfg
}

func NewImageRepo(cfg *cfg.ImgBBCfg) *ImageRepo {
	return &ImageRepo{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

// uploadResponse — ответ ImgBB на запрос загрузки.
type uploadResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		ID        string `json:"id"`
		URL       string `json:"url"`
		DeleteURL string `json:"delete_url"`
	} `json:"data"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// Upload отправляет изображение в ImgBB одним запросом, без повторов,
// и возвращает выданные сервисом ссылки. Ключом объекта становится
// идентификатор, присвоенный провайдером.
func (i *ImageRepo) Upload(ctx context.Context, image *domain.Image) (*usecase.StoredObject, error) {
	body, contentType, err := buildUploadForm(i.cfg.APIKey, image)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.cfg.UploadURL, body)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %v", e.ErrBackendUnavailable, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: %v", e.ErrBackendUnavailable, err))
	}

	var parsed uploadResponse
	if err := json.Unmarshal(raw, &parsed); err != nil && resp.StatusCode == http.StatusOK {
		return nil, e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: malformed response: %v", e.ErrBackendUnavailable, err))
	}

	if resp.StatusCode != http.StatusOK || !parsed.Success {
		return nil, e.Wrap(whereami.WhereAmI(), classifyFailure(resp.StatusCode, &parsed))
	}

	return usecase.NewStoredObject(parsed.Data.ID, parsed.Data.URL, parsed.Data.DeleteURL), nil
}

// Delete у ImgBB программно недоступен: сервис выдаёт только delete_url
// для ручного удаления, поэтому объект остаётся у провайдера.
func (i *ImageRepo) Delete(ctx context.Context, key string) error {
	return nil
}

// buildUploadForm собирает multipart-форму запроса загрузки ImgBB:
// поле key с API-ключом и файловое поле image с байтами изображения.
func buildUploadForm(apiKey string, image *domain.Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("key", apiKey); err != nil {
		return nil, "", err
	}

	name := image.OriginalName
	if name == "" {
		name = image.ObjectKey
	}

	part, err := writer.CreateFormFile("image", name)
	if err != nil {
		return nil, "", err
	}

	if _, err := part.Write(image.Bytes); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// classifyFailure переводит ответ ImgBB об ошибке в ошибку хранилища.
// Исчерпание квоты и rate limit отличаются от прочих сбоев бэкенда.
func classifyFailure(status int, parsed *uploadResponse) error {
	msg := parsed.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	lower := strings.ToLower(msg)
	if status == http.StatusTooManyRequests ||
		strings.Contains(lower, "quota") || strings.Contains(lower, "rate limit") {
		return fmt.Errorf("%w: %s", e.ErrQuotaExceeded, msg)
	}

	return fmt.Errorf("%w: %s", e.ErrBackendUnavailable, msg)
}
