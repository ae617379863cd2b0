package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const maxReconnectBackoff = 30 * time.Second

// AMQPPublisher publishes events to a durable RabbitMQ queue as persistent
// JSON messages. The connection is opened lazily and reopened after failures.
type AMQPPublisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher creates a publisher for the broker at url.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{url: url}
}

// PublishFirstClassAttended sends evt to FirstClassAttendedQueue.
func (p *AMQPPublisher) PublishFirstClassAttended(ctx context.Context, evt FirstClassAttended) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		Timestamp:    time.Now().UTC(),
		MessageId:    evt.AttendanceID.Hex(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", FirstClassAttendedQueue, false, false, pub); err != nil {
		p.reset()
		return fmt.Errorf("publish %s: %w", FirstClassAttendedQueue, err)
	}
	return nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}

// channel returns an open channel with the queue declared. Callers hold p.mu.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueue(ch); err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func declareQueue(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(FirstClassAttendedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	return nil
}

// AMQPConsumer feeds FirstClassAttended messages to a Handler.
type AMQPConsumer struct {
	url      string
	prefetch int
	handler  Handler
}

// NewAMQPConsumer creates a consumer that hands each message to h.
func NewAMQPConsumer(url string, prefetch int, h Handler) *AMQPConsumer {
	if prefetch <= 0 {
		prefetch = 20
	}
	return &AMQPConsumer{url: url, prefetch: prefetch, handler: h}
}

// Run consumes until ctx is cancelled, reconnecting with backoff whenever the
// broker connection drops.
func (c *AMQPConsumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Printf("WARN: event consumer failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < maxReconnectBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("WARN: event consumer loop ended: %v; reconnecting", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *AMQPConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		log.Printf("WARN: event consumer set QoS failed: %v", err)
	}
	if err := declareQueue(ch); err != nil {
		return err
	}

	msgs, err := ch.Consume(FirstClassAttendedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.deliver(ctx, d)
		}
	}
}

func (c *AMQPConsumer) deliver(ctx context.Context, d amqp.Delivery) {
	var evt FirstClassAttended
	if err := json.Unmarshal(d.Body, &evt); err != nil {
		log.Printf("ERROR: event consumer dropping malformed message: %v", err)
		_ = d.Nack(false, false) // do not requeue poison messages
		return
	}
	if err := c.handler(ctx, evt); err != nil {
		log.Printf("ERROR: event consumer handler failed for member %s: %v", evt.MemberID.Hex(), err)
		_ = d.Nack(false, !d.Redelivered) // one retry, then drop
		return
	}
	_ = d.Ack(false)
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
