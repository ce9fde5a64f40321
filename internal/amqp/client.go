package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"spendbook/internal/core"
	"spendbook/internal/log"
	"spendbook/internal/store"
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
	maxRetries     = 3
	queueSize      = 256
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// channel is the part of *amqp091.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, io.Closer, error)

func dialAMQP(url string) (channel, io.Closer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn, nil
}

// Client publishes store changes to a direct exchange. Publishing happens on
// the Run goroutine so a slow or absent broker never holds up a mutation.
type Client struct {
	url          string
	exchangeName string
	routingKey   string
	logger       *log.Logger
	dial         dialFunc

	mu      sync.Mutex
	channel channel
	conn    io.Closer

	state        int32
	failureCount int64
	cbMu         sync.Mutex
	lastFailure  time.Time

	queue   chan *ChangeMessage
	dropped atomic.Int64
}

// NewClient prepares a publisher. No connection is made until the first
// publish or an explicit Connect.
func NewClient(url, exchangeName, routingKey string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		routingKey:   routingKey,
		logger:       logger.WithComponent(log.ComponentAMQP),
		dial:         dialAMQP,
		queue:        make(chan *ChangeMessage, queueSize),
	}
}

// Connect dials the broker and declares the exchange.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.ensureChannel()
	if err != nil {
		c.logger.WarnContext(ctx, "AMQP broker unavailable, changes will be retried",
			log.FieldError, err.Error(),
			"exchange", c.exchangeName)
		return err
	}
	c.logger.InfoContext(ctx, "Connected to AMQP broker",
		"exchange", c.exchangeName,
		"routing_key", c.routingKey)
	return nil
}

func (c *Client) ensureChannel() (channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		return c.channel, nil
	}

	ch, conn, err := c.dial(c.url)
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		ch.Close()
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	c.channel, c.conn = ch, conn
	return ch, nil
}

func (c *Client) resetConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.channel, c.conn = nil, nil
}

// Publish sends one change message.
func (c *Client) Publish(ctx context.Context, msg *ChangeMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish change: %w", ErrCircuitOpen)
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		pctx,
		c.exchangeName, // exchange
		c.routingKey,   // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.resetConnection()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published change message",
		log.FieldOperation, msg.Op,
		log.FieldEntity, msg.Entity,
		log.FieldEntityID, msg.ID,
		log.FieldVersion, msg.Version)
	return nil
}

// Observer returns a store observer that queues every change for Run. When
// the queue is full the change is dropped and counted.
func (c *Client) Observer() store.Observer {
	return func(ch store.Change, _ core.Snapshot) {
		msg := NewChangeMessage(ch, time.Now())
		select {
		case c.queue <- msg:
		default:
			n := c.dropped.Add(1)
			c.logger.Warn("Change feed queue full, dropping message",
				log.FieldVersion, ch.Version,
				"dropped_total", n)
		}
	}
}

// Dropped returns how many changes were discarded because the queue was full.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Run publishes queued changes until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.queue:
			if err := c.publishWithRetry(ctx, msg); err != nil && ctx.Err() == nil {
				c.logger.ErrorContext(ctx, "Failed to publish change message",
					log.NewFields().
						WithOperation(log.OpPublish).
						WithEntity(msg.Entity, msg.ID).
						WithVersion(msg.Version).
						WithError(err).
						ToSlice()...)
			}
		}
	}
}

func (c *Client) publishWithRetry(ctx context.Context, msg *ChangeMessage) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = c.Publish(ctx, msg)
		if err == nil || errors.Is(err, ErrCircuitOpen) || !isConnectionError(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(exponentialBackoff(attempt)):
		}
	}
	return err
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	var err error
	if c.conn != nil {
		err = c.conn.Close()
	}
	c.channel, c.conn = nil, nil
	return err
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.cbMu.Lock()
	last := c.lastFailure
	c.cbMu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordFailure() {
	c.cbMu.Lock()
	c.lastFailure = time.Now()
	c.cbMu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

// exponentialBackoff doubles from one second, capped at thirty.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return 30 * time.Second
	}
	d := time.Second << attempt
	if d > 30*time.Second {
		return 30 * time.Second
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
	for _, s := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "use of closed network connection", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
