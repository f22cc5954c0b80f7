package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jimlawless/whereami"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
)

// Бэкенды хранилища изображений.
const (
	BackendMinio = "minio"
	BackendImgBB = "imgbb"
	BackendLocal = "local"
)

type Config struct {
	App      *AppCfg
	Http     *HTTPConfig
	Upload   *UploadCfg
	Storage  *StorageCfg
	Minio    *MinIOCfg
	ImgBB    *ImgBBCfg
	Local    *LocalCfg
	Db       *PGDBCfg
	Redis    *RedisCfg
	Kafka    *KafkaCfg
	Telegram *TelegramCfg
}

type AppCfg struct {
	ServiceName string
	Version     string
	Description string
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// UploadCfg задаёт ограничения на загружаемые изображения.
type UploadCfg struct {
	MaxFileSize       int64 // максимальный размер одного файла в байтах
	MaxBatchSize      int   // лимит на кол-во изображений в одном запросе
	BatchEnabled      bool
	AllowedFormats    map[string]bool
	ConcurrentUploads int // лимит одновременных загрузок в бэкенд
}

// FormatAllowed проверяет расширение (без точки) по списку разрешённых форматов.
func (u *UploadCfg) FormatAllowed(ext string) bool {
	return u.AllowedFormats[strings.ToLower(ext)]
}

// MaxSizeMB возвращает лимит размера файла в мегабайтах для отображения.
func (u *UploadCfg) MaxSizeMB() int64 {
	return u.MaxFileSize >> 20
}

// StorageCfg выбирает бэкенд хранилища изображений.
type StorageCfg struct {
	Backend string
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Название конкретного бакета в Minio
	MinioRootUser     string // Имя пользователя для доступа к Minio
	MinioRootPassword string // Пароль для доступа к Minio
	MinioUseSSL       bool
	PublicURL         string // Базовый URL, по которому объекты доступны снаружи
}

// ImgBBCfg — настройки стороннего хостинга изображений imgbb.com.
type ImgBBCfg struct {
	APIKey    string
	UploadURL string
	Timeout   time.Duration
}

// LocalCfg — настройки хранения изображений на локальном диске.
type LocalCfg struct {
	Dir       string
	PublicURL string // Базовый URL сервиса, раздающего файлы по /i/
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ImageTTL    time.Duration
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

// TelegramCfg — настройки Telegram-бота. Бот включается при наличии BOT_TOKEN.
type TelegramCfg struct {
	BotToken    string
	PollTimeout int // таймаут long polling в секундах
	Enabled     bool
}

// Load читает конфигурацию из окружения один раз при старте.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	upload, err := loadUploadCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	storage, err := loadStorageCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	imgbb, err := loadImgBBCfg(storage.Backend == BackendImgBB)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	telegram, err := loadTelegramCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	log.Debugf("configuration loaded, storage backend: %s", storage.Backend)

	return &Config{
		App:      loadAppCfg(),
		Http:     http,
		Upload:   upload,
		Storage:  storage,
		Minio:    minio,
		ImgBB:    imgbb,
		Local:    loadLocalCfg(http),
		Db:       db,
		Redis:    redis,
		Kafka:    kafka,
		Telegram: telegram,
	}, nil
}

func loadAppCfg() *AppCfg {
	const (
		defaultServiceName = "pixloft-image-uploader"
		defaultVersion     = "1.0.0"
		defaultDescription = "Image upload service"
	)

	return &AppCfg{
		ServiceName: getEnvOrDefault("SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultVersion),
		Description: getEnvOrDefault("SERVICE_DESCRIPTION", defaultDescription),
	}
}

func loadHTTPConfig() (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 10 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	readTimeout, err := parseEnv("HTTP_READ_TIMEOUT", defaultReadTimeout, time.ParseDuration)
	if err != nil {
		return nil, e.Wrap("HTTP_READ_TIMEOUT", err)
	}

	writeTimeout, err := parseEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout, time.ParseDuration)
	if err != nil {
		return nil, e.Wrap("HTTP_WRITE_TIMEOUT", err)
	}

	idleTimeout, err := parseEnv("KEEP_ALIVE", defaultIdleTimeout, time.ParseDuration)
	if err != nil {
		return nil, e.Wrap("KEEP_ALIVE", err)
	}

	return &HTTPConfig{
		Port:         getEnvOrDefault("HTTP_PORT", defaultPort),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadUploadCfg() (*UploadCfg, error) {
	const (
		defaultMaxFileSize  = 10 << 20 // 10 MiB
		defaultMaxBatchSize = 10
		defaultConcurrency  = 5
		defaultFormats      = "png,jpg,jpeg,gif,webp"
	)

	maxFileSize, err := parseSizeEnv("UPLOAD_MAX_FILE_SIZE", defaultMaxFileSize)
	if err != nil {
		return nil, e.Wrap("UPLOAD_MAX_FILE_SIZE", err)
	}

	maxBatchSize, err := parseEnv("UPLOAD_MAX_BATCH", defaultMaxBatchSize, strconv.Atoi)
	if err != nil {
		return nil, e.Wrap("UPLOAD_MAX_BATCH", err)
	}

	batchEnabled, err := parseEnv("UPLOAD_BATCH_ENABLED", true, strconv.ParseBool)
	if err != nil {
		return nil, e.Wrap("UPLOAD_BATCH_ENABLED", err)
	}

	concurrency, err := parseEnv("UPLOAD_CONCURRENCY", defaultConcurrency, strconv.Atoi)
	if err != nil {
		return nil, e.Wrap("UPLOAD_CONCURRENCY", err)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	formats := make(map[string]bool)
	for _, f := range strings.Split(getEnvOrDefault("UPLOAD_ALLOWED_FORMATS", defaultFormats), ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			formats[f] = true
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("UPLOAD_ALLOWED_FORMATS must not be empty")
	}

	return &UploadCfg{
		MaxFileSize:       maxFileSize,
		MaxBatchSize:      maxBatchSize,
		BatchEnabled:      batchEnabled,
		AllowedFormats:    formats,
		ConcurrentUploads: concurrency,
	}, nil
}

func loadStorageCfg() (*StorageCfg, error) {
	backend := strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", BackendMinio))
	switch backend {
	case BackendMinio, BackendImgBB, BackendLocal:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", backend)
	}

	return &StorageCfg{Backend: backend}, nil
}

func loadMinIOCfg() (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
	)

	useSSL, err := parseEnv("MINIO_USE_SSL", defaultUseSSL, strconv.ParseBool)
	if err != nil {
		return nil, e.Wrap("MINIO_USE_SSL", err)
	}

	endpoint := getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint)

	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	publicURL := getEnvOrDefault("MINIO_PUBLIC_URL", scheme+"://"+endpoint)

	return &MinIOCfg{
		MinioEndpoint:     endpoint,
		BucketName:        os.Getenv("BUCKET_NAME"),
		MinioRootUser:     os.Getenv("MINIO_ROOT_USER"),
		MinioRootPassword: os.Getenv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
		PublicURL:         strings.TrimRight(publicURL, "/"),
	}, nil
}

// loadImgBBCfg принимает required=true, когда imgbb выбран активным
// бэкендом: без API-ключа такой конфиг бесполезен.
func loadImgBBCfg(required bool) (*ImgBBCfg, error) {
	const (
		defaultUploadURL = "https://api.imgbb.com/1/upload"
		defaultTimeout   = 30 * time.Second
	)

	apiKey := os.Getenv("IMGBB_API_KEY")
	if required && apiKey == "" {
		return nil, fmt.Errorf("IMGBB_API_KEY environment variable is required")
	}

	timeout, err := parseEnv("IMGBB_TIMEOUT", defaultTimeout, time.ParseDuration)
	if err != nil {
		return nil, e.Wrap("IMGBB_TIMEOUT", err)
	}

	return &ImgBBCfg{
		APIKey:    apiKey,
		UploadURL: getEnvOrDefault("IMGBB_UPLOAD_URL", defaultUploadURL),
		Timeout:   timeout,
	}, nil
}

func loadLocalCfg(http *HTTPConfig) *LocalCfg {
	const defaultDir = "./uploads"

	return &LocalCfg{
		Dir:       getEnvOrDefault("LOCAL_STORAGE_DIR", defaultDir),
		PublicURL: strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:"+http.Port), "/"),
	}
}

func loadPGDBCfg() (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	user, err := requireEnv("POSTGRES_USER")
	if err != nil {
		return nil, err
	}

	password, err := requireEnv("POSTGRES_PASSWORD")
	if err != nil {
		return nil, err
	}

	dbName, err := requireEnv("POSTGRES_DB")
	if err != nil {
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadRedisCfg() (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultImageTTL     = 3 * time.Minute
	)

	db, err := parseEnv("REDIS_DB_ID", defaultDB, strconv.Atoi)
	if err != nil {
		return nil, e.Wrap("REDIS_DB_ID", err)
	}

	maxRetries, err := parseEnv("MAX_RETRIES", defaultMaxRetries, strconv.Atoi)
	if err != nil {
		return nil, e.Wrap("MAX_RETRIES", err)
	}

	dialTimeout, err := parseEnv("DIAL_TIMEOUT", defaultDialTimeout, time.ParseDuration)
	if err != nil {
		return nil, e.Wrap("DIAL_TIMEOUT", err)
	}

	readTimeout, err := parseEnv("READ_TIMEOUT", defaultReadTimeout, time.ParseDuration)
	if err != nil {
		return nil, e.Wrap("READ_TIMEOUT", err)
	}

	writeTimeout, err := parseEnv("WRITE_TIMEOUT", defaultWriteTimeout, time.ParseDuration)
	if err != nil {
		return nil, e.Wrap("WRITE_TIMEOUT", err)
	}

	imageTTL, err := parseEnv("IMAGE_TTL", defaultImageTTL, time.ParseDuration)
	if err != nil {
		return nil, e.Wrap("IMAGE_TTL", err)
	}

	return &RedisCfg{
		Addr:        getEnvOrDefault("REDIS_ADDR", defaultAddr),
		Password:    os.Getenv("REDIS_PASSWORD"),
		User:        os.Getenv("REDIS_USER"),
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     max(readTimeout, writeTimeout),
		ImageTTL:    imageTTL,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr, err := requireEnv("KAFKA_BROKERS")
	if err != nil {
		return nil, err
	}

	topic, err := requireEnv("KAFKA_TOPIC")
	if err != nil {
		return nil, err
	}

	partitions, err := parseEnv("KAFKA_PARTITIONS", defaultPartitions, strconv.Atoi)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseEnv("REPLICATION_FACTOR", defaultReplicationFactor, strconv.Atoi)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	return &KafkaCfg{
		Brokers:           strings.Split(brokerStr, ","),
		Topic:             topic,
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode),
	}, nil
}

func loadTelegramCfg() (*TelegramCfg, error) {
	const defaultPollTimeout = 30

	pollTimeout, err := parseEnv("TELEGRAM_POLL_TIMEOUT", defaultPollTimeout, strconv.Atoi)
	if err != nil {
		return nil, e.Wrap("TELEGRAM_POLL_TIMEOUT", err)
	}

	token := os.Getenv("BOT_TOKEN")

	return &TelegramCfg{
		BotToken:    token,
		PollTimeout: pollTimeout,
		Enabled:     token != "",
	}, nil
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// requireEnv возвращает ошибку, если обязательная переменная не задана.
func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s environment variable is required", key)
	}

	return v, nil
}

// parseEnv читает переменную окружения через parse
// или отдаёт значение по умолчанию, когда она не задана.
func parseEnv[T any](key string, defaultValue T, parse func(string) (T, error)) (T, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	val, err := parse(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return val, nil
}

// parseSizeEnv считывает размер в байтах с поддержкой единиц ("10MB", "512KiB").
func parseSizeEnv(key string, defaultValue int64) (int64, error) {
	return parseEnv(key, defaultValue, func(v string) (int64, error) {
		size, err := humanize.ParseBytes(v)
		return int64(size), err
	})
}
