package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"

	"crypto-exchange/internal/cache"
	"crypto-exchange/internal/metrics"
	"crypto-exchange/internal/models"
	"crypto-exchange/internal/store"
	"crypto-exchange/internal/trading"
)

// OrderSubmission is the inbound order-intent message. MessageID makes
// redelivered submissions idempotent.
type OrderSubmission struct {
	MessageID string             `json:"message_id"`
	UserID    string             `json:"user_id"`
	Intent    models.OrderIntent `json:"intent"`
}

// CancelRequest asks for an order owned by UserID to be cancelled.
type CancelRequest struct {
	MessageID string `json:"message_id"`
	UserID    string `json:"user_id"`
	OrderID   string `json:"order_id"`
}

// Consumer drives the order lifecycle from the submission queue.
//
// WORKFLOW:
//  1. Upstream services publish order intents and cancel requests to the
//     topic exchange
//  2. Worker goroutines pull deliveries with fair dispatch (Qos)
//  3. The dedup store drops redelivered message ids
//  4. Each intent runs one synchronous placement + matching pass; each
//     cancel request runs one guarded cancellation
//  5. Resulting lifecycle events fan back out through the publisher
type Consumer struct {
	conn      *amqp.Connection
	channel   *amqp.Channel
	service   *trading.Service
	dedup     *store.DedupStore
	publisher *Publisher
	cache     *cache.RedisCache
	metrics   *metrics.Metrics
	logger    *zap.Logger
	workers   int
	wg        sync.WaitGroup
}

// NewConsumer connects to RabbitMQ. publisher and redisCache are optional;
// nil disables outbound events and status caching respectively.
func NewConsumer(amqpURL string, service *trading.Service, dedup *store.DedupStore, publisher *Publisher, redisCache *cache.RedisCache, m *metrics.Metrics, logger *zap.Logger, workers int) (*Consumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Fair dispatch across workers.
	if err := ch.Qos(10, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Consumer{
		conn:      conn,
		channel:   ch,
		service:   service,
		dedup:     dedup,
		publisher: publisher,
		cache:     redisCache,
		metrics:   m,
		logger:    logger,
		workers:   workers,
	}, nil
}

// Start declares the queue, binds the inbound routing keys and spawns the
// worker pool.
func (c *Consumer) Start(exchange, queue string) error {
	q, err := c.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	for _, key := range []string{EventOrderSubmitted, EventOrderCancelRequested} {
		if err := c.channel.QueueBind(q.Name, key, exchange, false, nil); err != nil {
			return err
		}
	}

	deliveries, err := c.channel.Consume(
		q.Name,
		"",    // consumer tag
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker(deliveries)
	}

	c.logger.Info("order submission consumer started",
		zap.String("queue", q.Name),
		zap.Int("workers", c.workers))
	return nil
}

// Stop closes the channel, which drains the delivery stream, and waits for
// in-flight work to finish.
func (c *Consumer) Stop() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	c.wg.Wait()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Consumer) worker(deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()
	for d := range deliveries {
		switch d.RoutingKey {
		case EventOrderCancelRequested:
			c.handleCancel(d)
		default:
			c.handleSubmission(d)
		}
	}
}

func (c *Consumer) handleSubmission(d amqp.Delivery) {
	var sub OrderSubmission
	if err := json.Unmarshal(d.Body, &sub); err != nil {
		c.logger.Error("malformed order submission", zap.Error(err))
		c.metrics.MQMessagesConsumed.WithLabelValues(EventOrderSubmitted, "malformed").Inc()
		_ = d.Nack(false, false)
		return
	}

	ctx := context.Background()

	if !c.claim(ctx, d, sub.MessageID, EventOrderSubmitted) {
		return
	}

	start := time.Now()
	order, trades, err := c.service.PlaceOrder(ctx, sub.UserID, sub.Intent)
	c.metrics.MatchDuration.Observe(time.Since(start).Seconds())

	if err != nil && order == nil {
		var pe *trading.PersistenceError
		if errors.As(err, &pe) {
			// Transient store failure before the order existed: release the
			// claim so the redelivery is not treated as a duplicate.
			c.logger.Warn("order submission failed, requeueing",
				zap.String("user_id", sub.UserID),
				zap.Error(err))
			c.release(ctx, sub.MessageID)
			_ = d.Nack(false, true)
			return
		}

		// Rejected before any mutation; retrying the same payload cannot
		// succeed, so drop it rather than requeue.
		c.logger.Warn("order submission rejected",
			zap.String("user_id", sub.UserID),
			zap.Error(err))
		c.metrics.OrdersRejected.WithLabelValues(rejectionReason(err)).Inc()
		c.metrics.MQMessagesConsumed.WithLabelValues(EventOrderSubmitted, "rejected").Inc()
		_ = d.Nack(false, false)
		return
	}

	if err != nil {
		// Order placed, matching incomplete: trades already committed stay
		// committed, the order rests in its last-known-good status.
		c.logger.Warn("order placed but matching incomplete",
			zap.String("order_id", order.ID),
			zap.Int("trades", len(trades)),
			zap.Error(err))
	}

	c.metrics.OrdersPlaced.WithLabelValues(string(order.Side), string(order.Type)).Inc()
	if order.Status == models.Filled {
		c.metrics.OrdersFilled.Inc()
	}

	c.cacheStatus(ctx, order)
	c.publish(EventOrderPlaced, order)
	if order.Status == models.Filled {
		c.publish(EventOrderFilled, order)
	}

	c.metrics.MQMessagesConsumed.WithLabelValues(EventOrderSubmitted, "processed").Inc()
	_ = d.Ack(false)
}

func (c *Consumer) handleCancel(d amqp.Delivery) {
	var req CancelRequest
	if err := json.Unmarshal(d.Body, &req); err != nil || req.OrderID == "" {
		c.logger.Error("malformed cancel request", zap.Error(err))
		c.metrics.MQMessagesConsumed.WithLabelValues(EventOrderCancelRequested, "malformed").Inc()
		_ = d.Nack(false, false)
		return
	}

	ctx := context.Background()

	if !c.claim(ctx, d, req.MessageID, EventOrderCancelRequested) {
		return
	}

	// Cached terminal status short-circuits cancel storms against orders
	// that already finished; on a miss the guarded update decides.
	if c.cache != nil {
		status, ok, err := c.cache.GetOrderStatus(ctx, req.OrderID)
		if err == nil && ok {
			c.metrics.CacheHits.Inc()
			if status.IsTerminal() {
				c.logger.Info("cancel skipped, order already terminal",
					zap.String("order_id", req.OrderID),
					zap.String("status", string(status)))
				c.metrics.MQMessagesConsumed.WithLabelValues(EventOrderCancelRequested, "rejected").Inc()
				_ = d.Nack(false, false)
				return
			}
		} else if err == nil {
			c.metrics.CacheMisses.Inc()
		}
	}

	order, err := c.service.CancelOrder(ctx, req.UserID, req.OrderID)
	if err != nil {
		var ue *trading.UnauthorizedError
		if trading.IsNotFound(err) || trading.IsInvalidState(err) || errors.As(err, &ue) {
			c.metrics.MQMessagesConsumed.WithLabelValues(EventOrderCancelRequested, "rejected").Inc()
			_ = d.Nack(false, false)
			return
		}
		c.logger.Error("cancel failed, requeueing",
			zap.String("order_id", req.OrderID),
			zap.Error(err))
		c.release(ctx, req.MessageID)
		_ = d.Nack(false, true)
		return
	}

	c.metrics.OrdersCancelled.Inc()
	c.cacheStatus(ctx, order)
	c.publish(EventOrderCancelled, order)

	c.metrics.MQMessagesConsumed.WithLabelValues(EventOrderCancelRequested, "processed").Inc()
	_ = d.Ack(false)
}

// claim acks duplicates and requeues on dedup failures; true means the
// caller owns this delivery.
func (c *Consumer) claim(ctx context.Context, d amqp.Delivery, messageID, eventType string) bool {
	if messageID == "" {
		return true
	}

	fresh, err := c.dedup.TryProcess(ctx, messageID, eventType)
	if err != nil {
		c.logger.Error("dedup check failed, requeueing",
			zap.String("message_id", messageID),
			zap.Error(err))
		_ = d.Nack(false, true)
		return false
	}
	if !fresh {
		c.logger.Info("duplicate message skipped", zap.String("message_id", messageID))
		c.metrics.MQMessagesConsumed.WithLabelValues(eventType, "duplicate").Inc()
		_ = d.Ack(false)
		return false
	}
	return true
}

// release drops the dedup claim ahead of a requeue, so the redelivered copy
// can claim it again.
func (c *Consumer) release(ctx context.Context, messageID string) {
	if messageID == "" {
		return
	}
	if err := c.dedup.Release(ctx, messageID); err != nil {
		c.logger.Warn("failed to release message claim",
			zap.String("message_id", messageID),
			zap.Error(err))
	}
}

func (c *Consumer) cacheStatus(ctx context.Context, order *models.Order) {
	if c.cache == nil {
		return
	}
	if err := c.cache.SetOrderStatus(ctx, order.ID, order.Status); err != nil {
		c.logger.Warn("failed to cache order status",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
}

func (c *Consumer) publish(routingKey string, payload interface{}) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(routingKey, payload); err != nil {
		c.logger.Warn("failed to publish event",
			zap.String("routing_key", routingKey),
			zap.Error(err))
		return
	}
	c.metrics.MQMessagesPublished.WithLabelValues(routingKey).Inc()
}

func rejectionReason(err error) string {
	switch {
	case trading.IsValidation(err):
		return "validation"
	case trading.IsNotFound(err):
		return "not_found"
	default:
		return "persistence"
	}
}
