package mq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/lumenhq/dam/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DialFunc opens a fresh broker connection. It is used for the first dial and
// for reconnecting after the broker drops the channel.
type DialFunc func() (*amqp.Connection, error)

// tableCarrier adapts amqp.Table to TextMapCarrier for OpenTelemetry propagation
type tableCarrier struct {
	table amqp.Table
}

func (c tableCarrier) Get(key string) string {
	if val, ok := c.table[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
		return fmt.Sprintf("%v", val)
	}
	return ""
}

func (c tableCarrier) Set(key, value string) {
	c.table[key] = value
}

func (c tableCarrier) Keys() []string {
	keys := make([]string, 0, len(c.table))
	for k := range c.table {
		keys = append(keys, k)
	}
	return keys
}

type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	dial     DialFunc
	declared map[string]bool
	log      *zap.Logger
	cfg      *config.Config
}

func NewPublisher(conn *amqp.Connection, log *zap.Logger, cfg *config.Config, dial DialFunc) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		conn:     conn,
		ch:       ch,
		dial:     dial,
		declared: map[string]bool{},
		log:      log,
		cfg:      cfg,
	}, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return nil
	}
	return p.ch.Close()
}

// Shutdown satisfies do.Shutdownable.
func (p *Publisher) Shutdown() error { return p.Close() }

// channel returns a usable channel, redialing once if the current one was closed.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		if p.dial == nil {
			return nil, errors.New("rabbitmq connection closed")
		}
		conn, err := p.dial()
		if err != nil {
			return nil, fmt.Errorf("redial rabbitmq: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p.ch = ch
	p.declared = map[string]bool{}
	p.log.Info("rabbitmq publisher channel reopened")
	return ch, nil
}

func (p *Publisher) PublishJSON(ctx context.Context, exchangeName string, routingKey string, body any) error {
	b, err := sonic.Marshal(body)
	if err != nil {
		return err
	}

	tracer := otel.Tracer(p.cfg.App.Name)
	ctx, span := tracer.Start(ctx, "rabbitmq.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination", exchangeName),
			attribute.String("messaging.destination_kind", "exchange"),
			attribute.String("messaging.rabbitmq.routing_key", routingKey),
		))
	defer span.End()

	headers := make(amqp.Table)
	otel.GetTextMapPropagator().Inject(ctx, tableCarrier{table: headers})

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         b,
		Headers:      headers,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		span.RecordError(err)
		return err
	}
	if exchangeName != "" && !p.declared[exchangeName] {
		if err := ch.ExchangeDeclare(exchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			span.RecordError(err)
			return fmt.Errorf("declare exchange %s: %w", exchangeName, err)
		}
		p.declared[exchangeName] = true
	}

	if err := ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, publishing); err != nil {
		span.RecordError(err)
		return err
	}

	span.SetAttributes(attribute.Int("messaging.message.body.size", len(b)))
	return nil
}

type Consumer struct {
	ch         *amqp.Channel
	q          amqp.Queue
	log        *zap.Logger
	cfg        *config.Config
	retryDelay time.Duration
}

// NewConsumer declares a durable queue and, when exchangeName is set, binds it
// to that topic exchange with bindingKey.
func NewConsumer(conn *amqp.Connection, exchangeName, queueName, bindingKey string, prefetch int, log *zap.Logger, cfg *config.Config) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	if exchangeName != "" {
		if err := ch.ExchangeDeclare(exchangeName, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return nil, err
		}
		if bindingKey == "" {
			bindingKey = "#"
		}
		if err := ch.QueueBind(q.Name, bindingKey, exchangeName, false, nil); err != nil {
			return nil, err
		}
	}
	return &Consumer{ch: ch, q: q, log: log, cfg: cfg, retryDelay: cfg.ConsumerRetryDelay()}, nil
}

func (c *Consumer) Close() error { return c.ch.Close() }

// ErrPermanent marks a delivery that must not be redelivered.
var ErrPermanent = errors.New("permanent consume failure")

// Handle consumes until ctx is done. A handler error requeues the delivery
// after the retry delay unless it wraps ErrPermanent, in which case the
// delivery is dropped.
func (c *Consumer) Handle(ctx context.Context, handler func(ctx context.Context, body []byte) error) error {
	msgs, err := c.ch.Consume(c.q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-msgs:
			if !ok {
				return errors.New("consumer channel closed")
			}
			c.deliver(ctx, m, handler)
		}
	}
}

func (c *Consumer) deliver(ctx context.Context, m amqp.Delivery, handler func(ctx context.Context, body []byte) error) {
	msgCtx := ctx
	if m.Headers != nil {
		msgCtx = otel.GetTextMapPropagator().Extract(ctx, tableCarrier{table: m.Headers})
	}

	msgCtx, span := otel.Tracer(c.cfg.App.Name).Start(msgCtx, "rabbitmq.consume",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination", c.q.Name),
			attribute.String("messaging.destination_kind", "queue"),
			attribute.String("messaging.operation", "receive"),
			attribute.Int("messaging.message.body.size", len(m.Body)),
		))
	defer span.End()

	if err := handler(msgCtx, m.Body); err != nil {
		span.RecordError(err)
		requeue := !errors.Is(err, ErrPermanent)
		c.log.Error("consume error", zap.Error(err), zap.Bool("requeue", requeue), zap.String("queue", c.q.Name))
		if requeue {
			c.backoff(ctx)
		}
		if nerr := m.Nack(false, requeue); nerr != nil {
			c.log.Error("nack failed", zap.Error(nerr), zap.Uint64("delivery_tag", m.DeliveryTag), zap.String("queue", c.q.Name))
		}
		return
	}
	if aerr := m.Ack(false); aerr != nil {
		c.log.Error("ack failed", zap.Error(aerr), zap.Uint64("delivery_tag", m.DeliveryTag), zap.String("queue", c.q.Name))
	}
}

// backoff holds a failing delivery for the retry delay so a message that keeps
// failing is not redelivered in a tight loop. It returns early when ctx ends.
func (c *Consumer) backoff(ctx context.Context) {
	if c.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
