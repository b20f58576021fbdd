package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"rareport/internal/core"
	"rareport/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

var (
	ErrCircuitOpen  = errors.New("circuit breaker is open")
	ErrClientClosed = errors.New("amqp client closed")
)

// link is an open connection with its channel.
type link interface {
	Channel() *amqp091.Channel
	IsClosed() bool
	Close() error
}

type amqpLink struct {
	conn *amqp091.Connection
	ch   *amqp091.Channel
}

func (l *amqpLink) Channel() *amqp091.Channel { return l.ch }

func (l *amqpLink) IsClosed() bool {
	return l.conn.IsClosed() || l.ch.IsClosed()
}

func (l *amqpLink) Close() error {
	_ = l.ch.Close()
	return l.conn.Close()
}

// Client publishes and consumes upload journal events on a durable queue
// bound to a direct exchange.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger
	dial         func() (link, error)

	// reconnectMu serializes dialing and Close; mu guards link.
	reconnectMu sync.Mutex
	mu          sync.Mutex
	link        link
	closed      bool

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}
	c.dial = c.dialBroker
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) dialBroker() (link, error) {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := c.setup(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return &amqpLink{conn: conn, ch: ch}, nil
}

// connect dials unconditionally, replacing and closing the current link.
func (c *Client) connect() error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	return c.reconnectLocked()
}

// reconnectLocked must be called with reconnectMu held.
func (c *Client) reconnectLocked() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClientClosed
	}

	l, err := c.dial()
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.link
	c.link = l
	c.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	// routing key is the queue name
	if err := ch.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

func (c *Client) current() link {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link
}

// liveChannel returns the current channel, reconnecting when it was
// closed. Concurrent callers share a single reconnect.
func (c *Client) liveChannel() (*amqp091.Channel, error) {
	if l := c.current(); l != nil && !l.IsClosed() {
		return l.Channel(), nil
	}

	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()
	if l := c.current(); l != nil && !l.IsClosed() {
		return l.Channel(), nil
	}
	if err := c.reconnectLocked(); err != nil {
		return nil, err
	}
	return c.current().Channel(), nil
}

// Record implements journal.Recorder by publishing the summary.
func (c *Client) Record(ctx context.Context, s core.UploadSummary) error {
	return c.PublishUploadProcessed(ctx, s)
}

// PublishUploadProcessed publishes a persistent upload event.
func (c *Client) PublishUploadProcessed(ctx context.Context, s core.UploadSummary) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish upload event: %w", ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := NewUploadProcessedMessage(s).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.liveChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish upload event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published upload event",
		log.FieldSessionID, s.SessionID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// ConsumeUploadProcessed delivers upload events to handler until ctx is
// done. Malformed bodies are dropped; handler failures are requeued. Lost
// connections are re-established with exponential backoff.
func (c *Client) ConsumeUploadProcessed(ctx context.Context, handler func(context.Context, *UploadProcessedMessage) error) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "AMQP consumer lost connection, retrying",
			log.FieldError, err, "attempt", attempt, "wait", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		if _, err := c.liveChannel(); err != nil {
			if errors.Is(err, ErrClientClosed) {
				return err
			}
			c.logger.WarnContext(ctx, "AMQP reconnect failed", log.FieldError, err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(context.Context, *UploadProcessedMessage) error) error {
	ch, err := c.liveChannel()
	if err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	c.logger.InfoContext(ctx, "Started consuming upload events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			msg, err := UploadProcessedMessageFromJSON(d.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "Dropping malformed upload event", log.FieldError, err)
				_ = d.Nack(false, false)
				continue
			}
			if err := handler(ctx, msg); err != nil {
				c.logger.ErrorContext(ctx, "Failed to handle upload event",
					log.FieldError, err, log.FieldSessionID, msg.Summary.SessionID)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection", "EOF", "broken pipe", "channel closed", "dial"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Close closes the current link. Later reconnects fail with
// ErrClientClosed.
func (c *Client) Close() error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	c.mu.Lock()
	l := c.link
	c.link = nil
	c.closed = true
	c.mu.Unlock()
	if l != nil {
		return l.Close()
	}
	return nil
}
