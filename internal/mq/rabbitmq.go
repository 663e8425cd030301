package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/projectsentinel/apiserver/config"
)

// RabbitMQClient publishes to and consumes from named queues on the
// default exchange. Publishing shares one channel; every subscription
// opens its own so prefetch applies per consumer.
type RabbitMQClient struct {
	conn     *amqp.Connection
	cfg      config.RabbitMQConfig
	mu       sync.Mutex
	publish  *amqp.Channel
	declared map[string]bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &RabbitMQClient{conn: conn, cfg: cfg, publish: ch, declared: make(map[string]bool)}, nil
}

// Publish sends a JSON message to the named queue. Messages are persistent
// when queues are durable.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.declare(r.publish, channel); err != nil {
		return "", err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    uuid.NewString(),
		Headers:      make(amqp.Table, len(attrs)),
		Body:         data,
	}
	if r.cfg.QueueDurable {
		msg.DeliveryMode = amqp.Persistent
	}
	for key, value := range attrs {
		msg.Headers[key] = value
	}
	if err := r.publish.PublishWithContext(ctx, "", channel, false, false, msg); err != nil {
		return "", err
	}
	return msg.MessageId, nil
}

// Subscribe consumes the named queue until ctx is done. A message whose
// handler fails is redelivered once and dropped on its second failure.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consumer channel: %w", err)
	}
	defer ch.Close()

	if r.cfg.PrefetchCount > 0 {
		if err := ch.Qos(r.cfg.PrefetchCount, 0, false); err != nil {
			return err
		}
	}
	r.mu.Lock()
	err = r.declare(ch, channel)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	deliveries, err := ch.ConsumeWithContext(ctx, channel, "sentinel-"+uuid.NewString(), false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, msg); err != nil {
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publish channel and the connection, which ends every
// subscription.
func (r *RabbitMQClient) Close() error {
	_ = r.publish.Close()
	return r.conn.Close()
}

// declare declares each queue once per client. Callers hold r.mu.
func (r *RabbitMQClient) declare(ch *amqp.Channel, name string) error {
	if r.declared[name] {
		return nil
	}
	if _, err := ch.QueueDeclare(name, r.cfg.QueueDurable, r.cfg.QueueAutoDelete, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	r.declared[name] = true
	return nil
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
