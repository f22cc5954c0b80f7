package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/jimlawless/whereami"
	"github.com/pixloft/go-backend/internal/cfg"
	"github.com/pixloft/go-backend/internal/usecase"
	"github.com/pixloft/go-backend/pkg/e"
	"github.com/pixloft/go-backend/pkg/logger"
	"github.com/segmentio/kafka-go"
)

const (
	writerBatchSize    = 10
	writerBatchTimeout = 500 * time.Millisecond
	writerSendTimeout  = 10 * time.Second
)

// Producer публикует события изображений в Kafka.
type Producer struct {
	writer *kafka.Writer
	logger logger.Logger
	cfg    *cfg.KafkaCfg
}

// NewProducer настраивает writer с пакетированием: сообщения копятся
// в пачки и уходят по заполнению либо по таймеру.
func NewProducer(logger logger.Logger, cfg *cfg.KafkaCfg) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, e.Wrap("kafka producer", errors.New("broker list is empty"))
	}

	p := &Producer{
		logger: logger,
		cfg:    cfg,
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    writerBatchSize,
		BatchTimeout: writerBatchTimeout,
		WriteTimeout: writerSendTimeout,
		Completion:   p.onCompletion,
	}

	return p, nil
}

func (p *Producer) onCompletion(messages []kafka.Message, err error) {
	if err != nil {
		p.logger.Warnf("kafka batch of %d not delivered: %v", len(messages), err)
	}
}

// WriteRawMessage отправляет готовый payload события в Kafka.
// Ключом сообщения служит ID изображения, чтобы события одного
// изображения попадали в одну партицию.
func (p *Producer) WriteRawMessage(ctx context.Context, req *usecase.WriteRawMessageReq) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(req.ImageID),
		Value: req.Payload,
	})
}

// EnsureTopic проверяет наличие топика и при отсутствии создаёт его
// через брокер-контроллер. Все сетевые вызовы ограничены общим timeout.
func (p *Producer) EnsureTopic(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	conn, err := kafka.Dial(p.cfg.NetworkMode, p.cfg.Brokers[0])
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if partitions, err := conn.ReadPartitions(p.cfg.Topic); err == nil && len(partitions) > 0 {
		return nil
	}

	// Создавать топики умеет только контроллер кластера.
	controller, err := conn.Controller()
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	ctrl, err := kafka.Dial(p.cfg.NetworkMode, net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	defer ctrl.Close()

	if err := ctrl.SetDeadline(deadline); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	topicCfg := kafka.TopicConfig{
		Topic:             p.cfg.Topic,
		NumPartitions:     p.cfg.Partitions,
		ReplicationFactor: p.cfg.ReplicationFactor,
	}
	if err := ctrl.CreateTopics(topicCfg); err != nil {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("create topic %s: %w", p.cfg.Topic, err))
	}

	p.logger.Infof("kafka topic %q created", p.cfg.Topic)
	return nil
}

// Close дожимает буферизованные сообщения и закрывает writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
