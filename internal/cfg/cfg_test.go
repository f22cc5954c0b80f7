package cfg

import (
	"testing"
	"time"

	"github.com/pixloft/go-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POSTGRES_USER", "app")
	t.Setenv("POSTGRES_PASSWORD", "secret")
	t.Setenv("POSTGRES_DB", "images")
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("KAFKA_TOPIC", "image-events")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Http.Port)
	assert.Equal(t, BackendMinio, cfg.Storage.Backend)
	assert.EqualValues(t, 10<<20, cfg.Upload.MaxFileSize)
	assert.Equal(t, 10, cfg.Upload.MaxBatchSize)
	assert.True(t, cfg.Upload.BatchEnabled)
	assert.Equal(t, 5, cfg.Upload.ConcurrentUploads)
	assert.Equal(t, 3*time.Minute, cfg.Redis.ImageTTL)
	assert.Equal(t, "./uploads", cfg.Local.Dir)
	assert.Equal(t, "http://localhost:8080", cfg.Local.PublicURL)
	assert.False(t, cfg.Telegram.Enabled)
}

func TestLoadAllowedFormats(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("UPLOAD_ALLOWED_FORMATS", "png, JPG ,webp")

	cfg, err := Load(logger.Nop())
	require.NoError(t, err)

	assert.True(t, cfg.Upload.FormatAllowed("png"))
	assert.True(t, cfg.Upload.FormatAllowed("JPG"))
	assert.True(t, cfg.Upload.FormatAllowed("webp"))
	assert.False(t, cfg.Upload.FormatAllowed("gif"))
	assert.False(t, cfg.Upload.FormatAllowed("zip"))
}

func TestLoadHumanizedFileSize(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "5MiB")

	cfg, err := Load(logger.Nop())
	require.NoError(t, err)

	assert.EqualValues(t, 5<<20, cfg.Upload.MaxFileSize)
	assert.EqualValues(t, 5, cfg.Upload.MaxSizeMB())
}

func TestLoadClampsConcurrency(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("UPLOAD_CONCURRENCY", "0")

	cfg, err := Load(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Upload.ConcurrentUploads)
}

func TestLoadRequiresPostgresCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POSTGRES_USER", "")

	_, err := Load(logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_USER")
}

func TestLoadRequiresKafkaBrokers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("KAFKA_BROKERS", "")

	_, err := Load(logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoadUnknownBackendRejected(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_BACKEND", "ftp")

	_, err := Load(logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_BACKEND")
}

func TestLoadImgBBBackendRequiresAPIKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STORAGE_BACKEND", "imgbb")

	_, err := Load(logger.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IMGBB_API_KEY")

	t.Setenv("IMGBB_API_KEY", "key123")
	cfg, err := Load(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, "https://api.imgbb.com/1/upload", cfg.ImgBB.UploadURL)
}

func TestLoadTelegramEnabledByToken(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := Load(logger.Nop())
	require.NoError(t, err)

	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, 30, cfg.Telegram.PollTimeout)
}
