package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/stretchr/testify/require"
)

func TestPickLargestPhoto(t *testing.T) {
	t.Parallel()

	require.Empty(t, pickLargestPhoto(nil).FileID)

	picked := pickLargestPhoto([]tgbotapi.PhotoSize{
		{FileID: "s", Width: 90, Height: 90},
		{FileID: "l", Width: 1280, Height: 960},
		{FileID: "m", Width: 320, Height: 240},
	})
	require.Equal(t, "l", picked.FileID)
}

func TestReplyForError(t *testing.T) {
	t.Parallel()

	uploadCfg := &cfg.UploadCfg{MaxFileSize: 5 << 20}

	require.Contains(t, replyForError(e.Wrap("photo.tiff", e.ErrUnsupportedFormat), uploadCfg), "Unsupported format")
	require.Contains(t, replyForError(e.ErrFileTooLarge, uploadCfg), "5 MB")
	require.Contains(t, replyForError(e.ErrQuotaExceeded, uploadCfg), "quota")
	require.Contains(t, replyForError(e.ErrBackendUnavailable, uploadCfg), "unavailable")
	require.Contains(t, replyForError(e.ErrInternalServerError, uploadCfg), "try again")
}
