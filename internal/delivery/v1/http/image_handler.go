package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
)

type ImageHandler struct {
	imageUsecase usecase.ImageUC
	uploadCfg    *cfg.UploadCfg
	logger       logger.Logger
}

func NewImageHandler(imageUsecase usecase.ImageUC, uploadCfg *cfg.UploadCfg, logger logger.Logger) *ImageHandler {
	return &ImageHandler{
		imageUsecase: imageUsecase,
		uploadCfg:    uploadCfg,
		logger:       logger,
	}
}

// UploadedImageResponse — элемент ответа на загрузку изображения.
// Токен удаления возвращается только здесь.
type UploadedImageResponse struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	DeleteURL   string `json:"delete_url,omitempty"`
	DeleteToken string `json:"delete_token,omitempty"`
	Filename    string `json:"filename,omitempty"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
}

// UploadImagesResponse — ответ на пакетную загрузку.
type UploadImagesResponse struct {
	Images []*UploadedImageResponse `json:"images"`
}

// ImageInfoResponse — метаданные изображения без токена удаления.
type ImageInfoResponse struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	DeleteURL  string    `json:"delete_url,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	Extension  string    `json:"extension"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ListImagesResponse — ответ на запрос списка изображений.
type ListImagesResponse struct {
	Images []*ImageInfoResponse `json:"images"`
	Count  int                  `json:"count"`
}

// uploadImages
//
//	@Summary		Загрузка изображений
//	@Description	Принимает multipart-форму (поле image или images) либо JSON с base64-данными
//	@Tags			images
//	@Accept			multipart/form-data
//	@Accept			json
//	@Produce		json
//	@Param			image	formData	file					false	"Изображение"
//	@Param			images	formData	file					false	"Изображения (пакетная загрузка)"
//	@Success		200		{object}	UploadedImageResponse	"Успешная загрузка"
//	@Failure		400		{object}	ErrorResponse			"Ошибка валидации"
//	@Failure		502		{object}	ErrorResponse			"Бэкенд хранилища недоступен"
//	@Failure		503		{object}	ErrorResponse			"Квота хранилища исчерпана"
//	@Router			/images [post]
func (h *ImageHandler) uploadImages(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 32 << 20

	maxTotal := h.uploadCfg.MaxFileSize*int64(h.uploadCfg.MaxBatchSize) + maxMemory
	r.Body = http.MaxBytesReader(w, r.Body, maxTotal)

	var (
		images []usecase.UploadImage
		err    error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		images, err = parseJSONUpload(r)
	} else {
		images, err = parseMultipartUpload(r, maxMemory, h.uploadCfg.MaxFileSize)
	}
	if err != nil {
		h.logger.Warnf("%d %s: %s", http.StatusBadRequest, e.ErrStatusBadRequest.Error(), err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.imageUsecase.UploadImages(r.Context(), usecase.NewUploadImagesReq(images))
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	base := requestBaseURL(r)
	if len(res.Images) == 1 {
		WriteSuccess(w, http.StatusOK, newUploadedImageResponse(&res.Images[0], base))
		return
	}

	items := make([]*UploadedImageResponse, 0, len(res.Images))
	for i := range res.Images {
		items = append(items, newUploadedImageResponse(&res.Images[i], base))
	}

	WriteSuccess(w, http.StatusOK, &UploadImagesResponse{Images: items})
}

// getImage
//
//	@Summary		Метаданные изображения
//	@Description	Возвращает метаданные и публичную ссылку по идентификатору
//	@Tags			images
//	@Produce		json
//	@Param			id	path		string	true	"Идентификатор изображения"
//	@Success		200	{object}	ImageInfoResponse
//	@Failure		404	{object}	ErrorResponse	"Изображение не найдено"
//	@Router			/images/{id} [get]
func (h *ImageHandler) getImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	info, err := h.imageUsecase.GetImage(r.Context(), id)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, newImageInfoResponse(info))
}

// listImages
//
//	@Summary		Последние изображения
//	@Description	Возвращает метаданные последних загруженных изображений
//	@Tags			images
//	@Produce		json
//	@Param			limit	query		int	false	"Максимум записей (по умолчанию 20, не более 100)"
//	@Success		200		{object}	ListImagesResponse
//	@Router			/images [get]
func (h *ImageHandler) listImages(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, e.Wrap("invalid limit "+raw, e.ErrStatusBadRequest))
			return
		}
		limit = parsed
	}

	infos, err := h.imageUsecase.ListImages(r.Context(), limit)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	items := make([]*ImageInfoResponse, 0, len(infos))
	for i := range infos {
		items = append(items, newImageInfoResponse(&infos[i]))
	}

	WriteSuccess(w, http.StatusOK, &ListImagesResponse{Images: items, Count: len(items)})
}

// deleteImage
//
//	@Summary		Удаление изображения
//	@Description	Удаляет изображение по токену из заголовка X-Delete-Token или параметра token
//	@Tags			images
//	@Produce		json
//	@Param			id				path		string	true	"Идентификатор изображения"
//	@Param			X-Delete-Token	header		string	false	"Токен удаления"
//	@Param			token			query		string	false	"Токен удаления"
//	@Success		200				{object}	map[string]interface{}
//	@Failure		403				{object}	ErrorResponse	"Неверный токен"
//	@Failure		404				{object}	ErrorResponse	"Изображение не найдено"
//	@Router			/images/{id} [delete]
func (h *ImageHandler) deleteImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	token := r.Header.Get("X-Delete-Token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	if err := h.imageUsecase.DeleteImage(r.Context(), usecase.NewDeleteImageReq(id, token)); err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
	})
}

func newUploadedImageResponse(img *usecase.UploadedImage, base string) *UploadedImageResponse {
	deleteURL := img.DeleteURL
	if deleteURL == "" {
		deleteURL = fmt.Sprintf("%s/api/v1/images/%s?token=%s", base, img.ID, img.DeleteToken)
	}

	return &UploadedImageResponse{
		ID:          img.ID,
		URL:         img.URL,
		DeleteURL:   deleteURL,
		DeleteToken: img.DeleteToken,
		Filename:    img.OriginalName,
		MimeType:    img.MimeType,
		Size:        img.Size,
	}
}

func newImageInfoResponse(info *usecase.ImageInfo) *ImageInfoResponse {
	return &ImageInfoResponse{
		ID:         info.ID,
		URL:        info.URL,
		DeleteURL:  info.DeleteURL,
		Filename:   info.OriginalName,
		Extension:  info.Extension,
		MimeType:   info.MimeType,
		Size:       info.Size,
		UploadedAt: info.UploadedAt,
	}
}
