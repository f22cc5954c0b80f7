package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// Ошибки конфигурации
	ErrIncorrectEnvVariable = fmt.Errorf("incorrect environment variable")

	// 400 Bad Request
	ErrStatusBadRequest  = fmt.Errorf("bad request")
	ErrExpectedMultipart = fmt.Errorf("expected multipart/form-data")
	ErrMalformedRequest  = fmt.Errorf("malformed request body")
	ErrNoImages          = fmt.Errorf("no images provided")
	ErrTooManyImages     = fmt.Errorf("too many images")
	ErrUnsupportedFormat = fmt.Errorf("unsupported image format")
	ErrFileTooLarge      = fmt.Errorf("file too large")

	// 403 Forbidden / 404 Not Found
	ErrInvalidDeleteToken = fmt.Errorf("invalid delete token")
	ErrImageNotFound      = fmt.Errorf("image not found")

	// Ошибки бэкенда хранилища (502 / 503)
	ErrBackendUnavailable = fmt.Errorf("storage backend unavailable")
	ErrQuotaExceeded      = fmt.Errorf("storage quota exceeded")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
