package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
)

const downloadTimeout = 30 * time.Second

// Bot принимает изображения в личных сообщениях и отвечает публичной ссылкой.
// Запускается только при заданном BOT_TOKEN.
type Bot struct {
	api       *tgbotapi.BotAPI
	imageUC   usecase.ImageUC
	uploadCfg *cfg.UploadCfg
	tgCfg     *cfg.TelegramCfg
	client    *http.Client
	logger    logger.Logger
}

func NewBot(tgCfg *cfg.TelegramCfg, uploadCfg *cfg.UploadCfg, imageUC usecase.ImageUC, logger logger.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(tgCfg.BotToken)
	if err != nil {
		return nil, e.Wrap("failed to create telegram bot", err)
	}

	return &Bot{
		api:       api,
		imageUC:   imageUC,
		uploadCfg: uploadCfg,
		tgCfg:     tgCfg,
		client:    &http.Client{Timeout: downloadTimeout},
		logger:    logger,
	}, nil
}

// Run запускает long polling и блокируется до отмены контекста.
func (b *Bot) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.tgCfg.PollTimeout

	updates := b.api.GetUpdatesChan(updateConfig)
	b.logger.Infof("telegram bot started as @%s", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Infof("telegram bot stopped")
			return
		case update, open := <-updates:
			if !open {
				b.logger.Warnf("telegram updates channel closed")
				return
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	switch {
	case msg.IsCommand():
		b.handleCommand(msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, msg)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		b.handleDocument(ctx, msg)
	default:
		b.reply(msg, "Send me an image and I will reply with a public link.")
	}
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.reply(msg, fmt.Sprintf(
			"Send me an image (photo or file) and I will host it for you.\n\n"+
				"Supported formats: png, jpg, jpeg, gif, webp.\n"+
				"Size limit: %d MB per file.",
			b.uploadCfg.MaxSizeMB(),
		))
	default:
		b.reply(msg, "Unknown command. Use /help.")
	}
}

// handlePhoto обрабатывает сжатые фото. Telegram пережимает их в JPEG
// и не сохраняет имя файла.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	const op = "Bot.handlePhoto"

	photo := pickLargestPhoto(msg.Photo)
	if photo.FileID == "" {
		return
	}

	if int64(photo.FileSize) > b.uploadCfg.MaxFileSize {
		b.reply(msg, replyForError(e.ErrFileTooLarge, b.uploadCfg))
		return
	}

	data, err := b.downloadFile(ctx, photo.FileID)
	if err != nil {
		b.logger.Errorf(e.Wrap(op, err), "failed to download photo")
		b.reply(msg, replyForError(err, b.uploadCfg))
		return
	}

	name := fmt.Sprintf("photo_%d.jpg", msg.MessageID)
	b.uploadAndReply(ctx, msg, data, "image/jpeg", name)
}

// handleDocument обрабатывает изображения, отправленные файлом без сжатия.
func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	const op = "Bot.handleDocument"

	doc := msg.Document
	if int64(doc.FileSize) > b.uploadCfg.MaxFileSize {
		b.reply(msg, replyForError(e.ErrFileTooLarge, b.uploadCfg))
		return
	}

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		b.logger.Errorf(e.Wrap(op, err), "failed to download document")
		b.reply(msg, replyForError(err, b.uploadCfg))
		return
	}

	b.uploadAndReply(ctx, msg, data, doc.MimeType, doc.FileName)
}

func (b *Bot) uploadAndReply(ctx context.Context, msg *tgbotapi.Message, data []byte, mimeType, name string) {
	img := usecase.NewUploadImage(data, mimeType, int64(len(data)), name)

	res, err := b.imageUC.UploadImages(ctx, usecase.NewUploadImagesReq([]usecase.UploadImage{*img}))
	if err != nil {
		b.logger.Warnf("telegram upload rejected: %s", err.Error())
		b.reply(msg, replyForError(err, b.uploadCfg))
		return
	}

	uploaded := res.Images[0]
	b.reply(msg, fmt.Sprintf("%s\n\nDelete token: %s", uploaded.URL, uploaded.DeleteToken))
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, e.Wrap("failed to resolve file url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, e.Wrap("failed to create download request", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, e.Wrap("failed to download file", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected download status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, b.uploadCfg.MaxFileSize+1))
	if err != nil {
		return nil, e.Wrap("failed to read file body", err)
	}
	if int64(len(data)) > b.uploadCfg.MaxFileSize {
		return nil, e.ErrFileTooLarge
	}

	return data, nil
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID

	if _, err := b.api.Send(reply); err != nil {
		b.logger.Errorf(err, "failed to send telegram reply")
	}
}

// pickLargestPhoto выбирает самую крупную версию фото из набора превью.
func pickLargestPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	if len(items) == 0 {
		return tgbotapi.PhotoSize{}
	}

	best := items[0]
	for _, item := range items[1:] {
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}

	return best
}

// replyForError переводит ошибку загрузки в понятный пользователю ответ.
func replyForError(err error, uploadCfg *cfg.UploadCfg) string {
	switch {
	case errors.Is(err, e.ErrUnsupportedFormat):
		return "Unsupported format. Allowed: png, jpg, jpeg, gif, webp."
	case errors.Is(err, e.ErrFileTooLarge):
		return fmt.Sprintf("File is too large. Limit is %d MB.", uploadCfg.MaxSizeMB())
	case errors.Is(err, e.ErrQuotaExceeded):
		return "Storage quota is exceeded, try again later."
	case errors.Is(err, e.ErrBackendUnavailable):
		return "Storage is temporarily unavailable, try again later."
	default:
		return "Upload failed, try again later."
	}
}
