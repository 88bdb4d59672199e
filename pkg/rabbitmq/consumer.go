package rabbitmq

import (
	"context"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"nvr-orchestrator/config"
)

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type Handler[T any] func(ctx context.Context, msg amqp.Delivery, dependencies T) error

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	handler    Handler[T]
	numWorkers int
}

// Consume binds the configured queue and feeds deliveries to a fixed pool of
// workers until ctx ends or the broker closes the channel.
func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	logger := zerolog.Ctx(ctx).With().Str("exchange", c.cfg.ExchangeName).Str("queue", c.cfg.Queue).Str("routing_key", c.cfg.RoutingKey).Logger()

	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declareExchange(ch, c.cfg); err != nil {
		logger.Error().Err(err).Msg("failed to declare exchange")
		return err
	}

	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to declare queue")
		return err
	}

	if err := ch.QueueBind(q.Name, c.cfg.RoutingKey, c.cfg.ExchangeName, false, nil); err != nil {
		logger.Error().Err(err).Msg("failed to bind queue")
		return err
	}

	if err := ch.Qos(c.numWorkers, 0, false); err != nil {
		logger.Error().Err(err).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		logger.Error().Err(err).Msg("failed to consume queue")
		return err
	}
	logger.Info().Int("workers", c.numWorkers).Msg("consuming camera events")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for msg := range jobs {
				if err := c.handler(ctx, msg, dependencies); err != nil {
					logger.Error().Err(err).Int("worker", workerID).Msg("failed to handle message")
				}
				// Events are not redelivered: a failed dispatch is logged and dropped.
				if err := msg.Ack(false); err != nil {
					logger.Error().Err(err).Int("worker", workerID).Msg("failed to acknowledge message")
				}
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}
			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

// declareExchange only checks broker-reserved amq.* exchanges, which cannot be
// declared by clients.
func declareExchange(ch *amqp.Channel, cfg *config.RabbitMQ) error {
	if strings.HasPrefix(cfg.ExchangeName, "amq.") {
		return ch.ExchangeDeclarePassive(cfg.ExchangeName, cfg.Kind, true, false, false, false, nil)
	}
	return ch.ExchangeDeclare(cfg.ExchangeName, cfg.Kind, true, false, false, false, nil)
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	numWorkers int,
	handler Handler[T],
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		handler:    handler,
		numWorkers: numWorkers,
	}
}
