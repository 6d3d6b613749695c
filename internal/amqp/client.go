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

	"kakeibo/internal/log"
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
	ErrCircuitOpen = errors.New("amqp circuit breaker is open")

	// ErrDrop tells the consumer to reject a message without requeueing it.
	ErrDrop = errors.New("drop message")
)

// Handler processes one report request.
type Handler func(ctx context.Context, msg *ReportRequestMessage) error

// Client publishes and consumes report requests on a durable direct exchange.
// Connections are opened lazily and re-dialed after connection errors.
type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failMu       sync.Mutex
	lastFailure  time.Time
}

// NewClient dials the broker and declares the exchange, queue and binding.
func NewClient(url, exchangeName, queueName string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}
	if _, err := c.ensureChannel(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) log() *log.Logger {
	if c.logger == nil {
		return log.New(log.DefaultConfig()).WithComponent(log.ComponentAMQP)
	}
	return c.logger
}

// ensureChannel returns the open channel, dialing again when needed.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	c.conn, c.channel = conn, channel

	if err := c.setup(); err != nil {
		c.closeLocked()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}
	return channel, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key equals the queue name.
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	// One unacknowledged report at a time per consumer.
	if err := c.channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	return nil
}

// PublishReportRequest publishes msg as a persistent JSON message.
func (c *Client) PublishReportRequest(ctx context.Context, msg *ReportRequestMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return ErrCircuitOpen
	}

	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	channel, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    msg.ID.String(),
			Timestamp:    time.Now(),
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

	c.log().InfoContext(ctx, "Published report request",
		log.FieldRequestID, msg.ID.String(),
		log.FieldMonth, msg.Month.String(),
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// Consume delivers report requests to handler until ctx is done. Lost
// connections are re-dialed with exponential backoff.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	attempt := 0
	for {
		err := c.consumeOnce(ctx, handler, func() { attempt = 0 })
		if ctx.Err() != nil {
			c.log().InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		c.log().WarnContext(ctx, "Consumer lost connection, reconnecting",
			log.FieldError, err.Error(),
			"retry_in", wait.String())
		c.resetConnection()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler Handler, connected func()) error {
	channel, err := c.ensureChannel()
	if err != nil {
		return err
	}

	msgs, err := channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	connected()
	c.log().InfoContext(ctx, "Started consuming report requests", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed: connection closed")
			}
			c.handleDelivery(ctx, d, handler)
		}
	}
}

// handleDelivery acks on success, rejects malformed bodies and ErrDrop
// without requeue, and requeues on any other handler error.
func (c *Client) handleDelivery(ctx context.Context, d amqp091.Delivery, handler Handler) {
	logger := c.log()

	msg, err := ReportRequestMessageFromJSON(d.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to decode report request", log.FieldError, err.Error())
		_ = d.Nack(false, false)
		return
	}

	msgLogger := logger.With(log.FieldRequestID, msg.ID.String(), log.FieldMonth, msg.Month.String())
	msgCtx := log.NewContext(ctx, msgLogger)
	msgLogger.InfoContext(msgCtx, "Processing report request", log.FieldOperation, log.OpConsume)

	if err := handler(msgCtx, msg); err != nil {
		requeue := !errors.Is(err, ErrDrop)
		msgLogger.ErrorContext(msgCtx, "Failed to handle report request",
			log.FieldError, err.Error(),
			"requeue", requeue)
		_ = d.Nack(false, requeue)
		return
	}

	_ = d.Ack(false)
	msgLogger.InfoContext(msgCtx, "Report request processed")
}

func (c *Client) resetConnection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() {
	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil {
		_ = c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.failMu.Lock()
	last := c.lastFailure
	c.failMu.Unlock()

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
	c.failMu.Lock()
	c.lastFailure = time.Now()
	c.failMu.Unlock()

	n := atomic.AddInt64(&c.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << uint(attempt)
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
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"eof",
		"broken pipe",
		"use of closed network connection",
		"channel/connection is not open",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
