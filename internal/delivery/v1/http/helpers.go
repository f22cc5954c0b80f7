package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/jimlawless/whereami"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
)

// ErrorResponse — тело ответа об ошибке: {"error": "<сообщение>"}.
type ErrorResponse struct {
	Error string `json:"error"`
}

func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Error: message}
}

func ToHTTPResponse(err error) (int, string) {
	switch {
	case errors.Is(err, e.ErrImageNotFound):
		return http.StatusNotFound, e.ErrImageNotFound.Error()
	case errors.Is(err, e.ErrInvalidDeleteToken):
		return http.StatusForbidden, e.ErrInvalidDeleteToken.Error()
	case errors.Is(err, e.ErrBackendUnavailable):
		return http.StatusBadGateway, e.ErrBackendUnavailable.Error()
	case errors.Is(err, e.ErrQuotaExceeded):
		return http.StatusServiceUnavailable, e.ErrQuotaExceeded.Error()
	case errors.Is(err, e.ErrUnsupportedFormat):
		return http.StatusBadRequest, e.ErrUnsupportedFormat.Error()
	case errors.Is(err, e.ErrFileTooLarge):
		return http.StatusBadRequest, e.ErrFileTooLarge.Error()
	case errors.Is(err, e.ErrMalformedRequest):
		return http.StatusBadRequest, e.ErrMalformedRequest.Error()
	case errors.Is(err, e.ErrExpectedMultipart):
		return http.StatusBadRequest, e.ErrExpectedMultipart.Error()
	case errors.Is(err, e.ErrNoImages):
		return http.StatusBadRequest, e.ErrNoImages.Error()
	case errors.Is(err, e.ErrTooManyImages):
		return http.StatusBadRequest, e.ErrTooManyImages.Error()
	case errors.Is(err, e.ErrStatusBadRequest):
		return http.StatusBadRequest, e.ErrStatusBadRequest.Error()
	default:
		return http.StatusInternalServerError, e.ErrInternalServerError.Error()
	}
}

func WriteError(w http.ResponseWriter, err error) {
	code, msg := ToHTTPResponse(err)
	WriteErrorMessage(w, code, msg)
}

func WriteErrorMessage(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(NewErrorResponse(msg))
}

func WriteSuccess(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func ensureMultipartForm(r *http.Request, maxMemory int64) error {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return e.Wrap(whereami.WhereAmI(), e.ErrExpectedMultipart)
	}

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return e.Wrap(whereami.WhereAmI(), e.ErrFileTooLarge)
		}

		return e.Wrap(whereami.WhereAmI(), e.ErrMalformedRequest)
	}

	return nil
}

// parseMultipartUpload собирает изображения из multipart-формы.
// Принимает и множественное поле images, и одиночное image.
func parseMultipartUpload(r *http.Request, maxMemory, maxFileSize int64) ([]usecase.UploadImage, error) {
	if err := ensureMultipartForm(r, maxMemory); err != nil {
		return nil, err
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		files = r.MultipartForm.File["image"]
	}

	return parseImages(files, maxFileSize)
}

func parseImages(files []*multipart.FileHeader, maxFileSize int64) ([]usecase.UploadImage, error) {
	if len(files) == 0 {
		return nil, e.ErrNoImages
	}

	images := make([]usecase.UploadImage, 0, len(files))
	for _, fh := range files {
		data, mimeType, err := readFile(fh, maxFileSize)
		if err != nil {
			return nil, err
		}
		images = append(images, *usecase.NewUploadImage(data, mimeType, int64(len(data)), fh.Filename))
	}
	return images, nil
}

// readFile вычитывает файл из multipart-формы и определяет его MIME-тип.
// Чтение ограничено maxSize+1: лишний байт отличает ровно лимит от превышения.
func readFile(fh *multipart.FileHeader, maxSize int64) ([]byte, string, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxSize+1))
	if err != nil {
		return nil, "", e.ErrInternalServerError
	}
	if int64(len(data)) > maxSize {
		return nil, "", e.Wrap(fh.Filename, e.ErrFileTooLarge)
	}

	return data, sniffMime(data), nil
}

// sniffMime определяет MIME-тип по первым байтам содержимого.
func sniffMime(data []byte) string {
	return http.DetectContentType(data[:min(len(data), 512)])
}

type jsonUploadImage struct {
	Filename string `json:"filename"`
	Data     string `json:"data"`
}

type jsonUploadRequest struct {
	jsonUploadImage
	Images []jsonUploadImage `json:"images"`
}

// parseJSONUpload собирает изображения из JSON-тела запроса:
// {"filename": "...", "data": "<base64>"} либо {"images": [...]}.
func parseJSONUpload(r *http.Request) ([]usecase.UploadImage, error) {
	var req jsonUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), e.ErrMalformedRequest)
	}

	items := req.Images
	if len(items) == 0 {
		if req.Data == "" {
			return nil, e.Wrap(whereami.WhereAmI(), e.ErrMalformedRequest)
		}
		items = []jsonUploadImage{req.jsonUploadImage}
	}

	images := make([]usecase.UploadImage, 0, len(items))
	for _, item := range items {
		data, err := decodeBase64Image(item.Data)
		if err != nil {
			return nil, e.Wrap(item.Filename, e.ErrMalformedRequest)
		}

		images = append(images, *usecase.NewUploadImage(data, sniffMime(data), int64(len(data)), item.Filename))
	}

	return images, nil
}

// decodeBase64Image декодирует base64-строку изображения,
// отбрасывая префикс data URI, если он есть.
func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		idx := strings.Index(s, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed data URI")
		}
		s = s[idx+1:]
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image data")
	}

	return data, nil
}

// requestBaseURL восстанавливает внешний адрес сервиса из запроса.
func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host
}
