package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/thirai-kg/backend/internal/util"
	"github.com/thirai-kg/backend/pkg/logger"
)

const (
	IngestQueue = "ingest_queue"
	// EventsExchange carries job lifecycle notifications.
	EventsExchange = "ingest_events"

	maxRetries = 10
	retryDelay = 10 * time.Second
)

// Init dials RabbitMQ with the RABBITMQ_* settings.
func Init() (*amqp091.Connection, error) {
	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		util.GetEnv("RABBITMQ_HOST"),
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)
	conn, err := amqp091.Dial(connURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// SetupQueues declares each queue with its dead-letter queue and a retry
// queue whose messages return to the main queue after retryDelay.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", EventsExchange, err)
	}

	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(retryDelay.Milliseconds()),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", retryName, err)
		}
		logger.Debug("[Queue] declared", "queue", name)
	}
	return nil
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// PublishFIFO publishes a persistent message to queueName on the default
// exchange.
func PublishFIFO(ctx context.Context, ch publisher, queueName string, data []byte) error {
	return ch.PublishWithContext(ctx, "", queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	})
}

// PublishTopic publishes a transient notification on EventsExchange.
func PublishTopic(ctx context.Context, ch publisher, topic string, data []byte) error {
	return ch.PublishWithContext(ctx, EventsExchange, topic, false, false, amqp091.Publishing{
		ContentType: "application/json",
		Body:        data,
		Timestamp:   time.Now(),
	})
}

// HandleProcessingError moves a failed delivery to the retry queue, or to
// the dead-letter queue once it was retried maxRetries times.
func HandleProcessingError(ctx context.Context, ch publisher, msg amqp091.Delivery, queueName string) {
	retries := retryCount(msg.Headers)

	target := queueName + "_retry"
	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if retries >= maxRetries {
		target = queueName + "_dlq"
		logger.Warn("[Queue] sending message to dead-letter queue", "queue", target, "retries", retries)
	} else {
		headers["x-retries"] = int32(retries + 1)
	}

	err := ch.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] failed to republish message", "queue", target, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

// IsLastAttempt reports whether a failure of msg would send it to the
// dead-letter queue.
func IsLastAttempt(msg amqp091.Delivery) bool {
	return retryCount(msg.Headers) >= maxRetries
}

func retryCount(headers amqp091.Table) int {
	switch v := headers["x-retries"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	}
	return 0
}
