package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
)

const (
	notifyChannel      = "outbox_pending"
	drainBatchSize     = 10
	notifyWaitTimeout  = 30 * time.Second
	redialDelay        = 2 * time.Second
	redialFailureDelay = 5 * time.Second
)

// Фразы из текстов ошибок kafka-go и net, после которых
// публикацию имеет смысл повторить.
var retryablePhrases = [...]string{
	"connection refused",
	"i/o timeout",
	"network is unreachable",
	"broker not available",
	"connection reset",
	"broken pipe",
	"no such host",
}

// OutboxWorker доставляет события из таблицы outbox в Kafka.
// Новые события приходят через NOTIFY из PostgreSQL, накопившийся
// бэклог выгребается при старте.
type OutboxWorker struct {
	repo      usecase.OutboxRepository
	producer  usecase.MessageProducer
	logger    logger.Logger
	dbConnStr string
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewOutboxWorker собирает воркер. dbConnStr используется для отдельного
// соединения под LISTEN: подписка живёт в рамках сессии, поэтому
// соединение из пула не годится.
func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	dbConnStr string,
) *OutboxWorker {
	return &OutboxWorker{
		repo:      repo,
		producer:  producer,
		logger:    logger,
		dbConnStr: dbConnStr,
		stopCh:    make(chan struct{}),
	}
}

// Start запускает выгрузку бэклога и слушателя уведомлений.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(2)

	go func() {
		defer w.wg.Done()
		w.logger.Infof("draining outbox backlog")
		if err := w.drain(ctx); err != nil {
			w.logger.Warnf("outbox backlog drain: %v", err)
		}
	}()

	go func() {
		defer w.wg.Done()
		w.listenNotifications(ctx)
	}()
}

// Stop сигнализирует горутинам остановиться и дожидается их завершения.
func (w *OutboxWorker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.logger.Infof("outbox worker stopped")
}

func (w *OutboxWorker) listenNotifications(ctx context.Context) {
	conn, err := w.openListenConn(ctx)
	if err != nil {
		w.logger.Warnf("outbox listener: %v", err)
		return
	}
	defer func() {
		if conn != nil {
			conn.Close(ctx)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, notifyWaitTimeout)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			continue
		default:
			w.logger.Warnf("notify connection lost: %v", err)
			conn.Close(ctx)
			if conn = w.redial(ctx); conn == nil {
				return
			}
			continue
		}

		if notif == nil || notif.Channel != notifyChannel {
			continue
		}

		w.logger.Debugf("outbox notification received, draining")
		if err := w.drain(ctx); err != nil {
			w.logger.Warnf("outbox drain: %v", err)
		}
	}
}

func (w *OutboxWorker) openListenConn(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, w.dbConnStr)
	if err != nil {
		return nil, e.Wrap("connect for LISTEN", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Close(ctx)
		return nil, e.Wrap("subscribe to "+notifyChannel, err)
	}

	w.logger.Infof("listening on postgres channel %q", notifyChannel)
	return conn, nil
}

// redial добивается нового LISTEN-соединения, пока воркер не остановят.
func (w *OutboxWorker) redial(ctx context.Context) *pgx.Conn {
	delay := redialDelay
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		case <-time.After(delay):
		}

		conn, err := w.openListenConn(ctx)
		if err == nil {
			return conn
		}
		w.logger.Warnf("reconnect for LISTEN failed: %v", err)
		delay = redialFailureDelay
	}
}

// drain публикует события пачками, пока outbox не опустеет
// или воркер не попросят остановиться.
func (w *OutboxWorker) drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopCh:
			return nil
		default:
		}

		hasMore, err := w.processBatch(ctx)
		if err != nil {
			return err
		}
		if !hasMore {
			return nil
		}
	}
}

// processBatch забирает пачку ожидающих событий и публикует их.
// Событие с неудавшейся публикацией не помечается обработанным и остаётся
// в processing с отметкой времени. Возвращает true, если в outbox могли
// остаться ещё события.
func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, drainBatchSize)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}

	for _, event := range events {
		if err := w.publish(ctx, event); err != nil {
			if isRetryableError(err) {
				w.logger.Warnf("event %d: broker unavailable, left unprocessed: %v", event.ID, err)
			} else {
				w.logger.Errorf(err, "event %d: publish rejected, left unprocessed", event.ID)
			}
			continue
		}

		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("event %d: mark as processed: %v", event.ID, err)
		}
	}

	return true, nil
}

func (w *OutboxWorker) publish(ctx context.Context, event *usecase.OutboxEvent) error {
	return w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(event.ImageID, event.Payload))
}

// isRetryableError отличает временные сетевые сбои от постоянных ошибок брокера.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}

	return false
}
