package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	config "github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/delivery/telegram"
	v1Http "github.com/pixloft/go-backend/internal/delivery/v1/http"
	"github.com/pixloft/go-backend/internal/infrastructure/kafka"
	"github.com/pixloft/go-backend/internal/infrastructure/storage"
	imgbbRepo "github.com/pixloft/go-backend/internal/repository/imgbb"
	localfsRepo "github.com/pixloft/go-backend/internal/repository/localfs"
	s3Repo "github.com/pixloft/go-backend/internal/repository/minio"
	"github.com/pixloft/go-backend/internal/repository/pgdb"
	pgdbConv "github.com/pixloft/go-backend/internal/repository/pgdb/converter"
	"github.com/pixloft/go-backend/internal/repository/redis"
	redisConv "github.com/pixloft/go-backend/internal/repository/redis/converter"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/clients"
	"github.com/pixloft/go-backend/pkg/closer"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
	"github.com/pixloft/go-backend/pkg/postgres"
	"github.com/spf13/afero"
)

func Run() {
	logger := logger.NewSlogLogger()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	logger.Infof("storage backend: %s", cfg.Storage.Backend)

	db, err := initPGDB(logger, cfg)
	if err != nil {
		logger.Errorf(err, "failed to initialize database")
		os.Exit(1)
	}

	cl := closer.NewCloser(2 * time.Second)
	cl.Add(func(_ context.Context) error {
		db.Close()
		return nil
	})

	imgConv := pgdbConv.NewImageConverter()
	outboxConv := pgdbConv.NewOutboxEventConverter()
	infoConv := redisConv.NewImageInfoConverter()

	imageRepo := pgdb.NewImageRepo(db.Pool, imgConv)
	outboxRepo := pgdb.NewOutboxEventRepo(db.Pool, outboxConv)

	store, static, err := initStore(logger, cfg)
	if err != nil {
		logger.Errorf(err, "failed to initialize storage backend")
		os.Exit(1)
	}

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		logger.Errorf(err, "failed to connect to redis")
		os.Exit(1)
	}
	cl.Add(func(_ context.Context) error {
		return redisClient.Close()
	})
	cacheRepo := redis.NewCacheRepo(redisClient, infoConv, cfg.Redis, logger)

	// Контекст фоновой очистки хранилища. Живёт дольше серверов, чтобы
	// компенсирующие удаления успели доработать при завершении.
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	storageInfra := storage.NewInfrastructure(store, cfg.Upload, logger, cleanupCtx)

	producer, err := kafka.NewProducer(logger, cfg.Kafka)
	if err != nil {
		logger.Errorf(err, "failed to initialize kafka producer")
		os.Exit(1)
	}
	cl.Add(func(_ context.Context) error {
		return producer.Close()
	})

	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		logger.Errorf(err, "failed to ensure kafka topic")
		os.Exit(1)
	}

	imageUC := usecase.NewImageUC(
		imageRepo,
		outboxRepo,
		db.Pool,
		storageInfra,
		cacheRepo,
		cfg.Upload,
		logger,
	)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	worker := kafka.NewOutboxWorker(outboxRepo, logger, producer, db.Dsn)
	worker.Start(workerCtx)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, logger)
	if err := router.Init(imageUC, cfg.App, cfg.Upload, static); err != nil {
		logger.Errorf(err, "failed to initialize router")
		os.Exit(1)
	}

	httpSrv := v1Http.NewServer(r, cfg.Http)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server started on port %s", cfg.Http.Port)
		if err := httpSrv.Run(); err != nil {
			logger.Errorf(err, "HTTP server failed: %v", err)
			errCh <- err
		}
	}()

	botCtx, botCancel := context.WithCancel(context.Background())
	defer botCancel()

	if cfg.Telegram.Enabled {
		bot, err := telegram.NewBot(cfg.Telegram, cfg.Upload, imageUC, logger)
		if err != nil {
			logger.Errorf(err, "failed to initialize telegram bot")
			os.Exit(1)
		}
		go bot.Run(botCtx)
	}

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// === Graceful shutdown ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Errorf(err, "HTTP server shutdown error")
	} else {
		logger.Infof("HTTP server stopped")
	}

	botCancel()

	worker.Stop()
	workerCancel()

	done := make(chan error, 1)
	go func() {
		done <- storageInfra.WaitForCleanup(shutdownCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Warnf("storage cleanup error: %v", err)
		} else {
			logger.Infof("storage cleanup completed")
		}
	case <-time.After(5 * time.Second): // локальный таймаут ожидания cleanup
		logger.Warnf("storage cleanup did not finish before shutdown, some objects may remain")
	}

	if err := cl.Close(shutdownCtx); err != nil {
		logger.Warnf("resource close error: %v", err)
	}

	logger.Infof("Application shutdown complete")
	if appErr != nil {
		os.Exit(1)
	}
}

// initStore собирает бэкенд хранилища по STORAGE_BACKEND. Для локального
// бэкенда вторым значением возвращается обработчик раздачи файлов по /i/.
func initStore(logger logger.Logger, cfg *config.Config) (usecase.ImageStore, http.Handler, error) {
	switch cfg.Storage.Backend {
	case config.BackendMinio:
		minioClient, err := clients.NewMinIOClient(cfg.Minio)
		if err != nil {
			return nil, nil, e.Wrap("failed to initialize minio client", err)
		}

		minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer minioCancel()
		if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
			return nil, nil, e.Wrap("failed to initialize minio bucket", err)
		}

		return s3Repo.NewImageRepo(minioClient, cfg.Minio), nil, nil

	case config.BackendImgBB:
		return imgbbRepo.NewImageRepo(cfg.ImgBB), nil, nil

	case config.BackendLocal:
		osFs := afero.NewOsFs()
		if err := osFs.MkdirAll(cfg.Local.Dir, 0o755); err != nil {
			return nil, nil, e.Wrap("failed to create local storage dir", err)
		}

		baseFs := afero.NewBasePathFs(osFs, cfg.Local.Dir)
		static := http.FileServer(afero.NewHttpFs(baseFs).Dir("/"))

		logger.Infof("local storage dir: %s", cfg.Local.Dir)
		return localfsRepo.NewImageRepo(baseFs, cfg.Local), static, nil

	default:
		return nil, nil, e.Wrap(cfg.Storage.Backend, e.ErrIncorrectEnvVariable)
	}
}

// initPGDB подключается к базе и доводит схему до актуальной версии.
func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		return nil, e.Wrap("postgres connect", err)
	}

	if err := db.RunMigrations(logger); err != nil {
		db.Close()
		return nil, e.Wrap("schema migrations", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, e.Wrap("postgres ping", err)
	}

	return db, nil
}
