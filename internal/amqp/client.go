// Package amqp bridges the engine to the chat transport over RabbitMQ: the
// transport daemon publishes inbound {owner_id, text} messages and consumes
// outbound replies and digests.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"duit/internal/core"
	"duit/internal/log"
	"duit/internal/transport"
)

type Client struct {
	conn          *amqp091.Connection
	channel       *amqp091.Channel
	exchangeName  string
	inboundQueue  string
	outboundQueue string
	logger        *log.Logger
}

var _ transport.Sender = (*Client)(nil)

func NewClient(url, exchangeName, inboundQueue, outboundQueue string, logger *log.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:          conn,
		channel:       channel,
		exchangeName:  exchangeName,
		inboundQueue:  inboundQueue,
		outboundQueue: outboundQueue,
		logger:        logger.WithComponent(log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
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

	for _, queue := range []string{c.inboundQueue, c.outboundQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		// routing key matches the queue name on a direct exchange
		if err := c.channel.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

func (c *Client) publishOutbound(ctx context.Context, msg transport.Outbound) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal outbound message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName,  // exchange
		c.outboundQueue, // routing key
		false,           // mandatory
		false,           // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish outbound message: %w", err)
	}

	c.logger.Debug("published outbound message",
		log.FieldOwnerID, int64(msg.OwnerID),
		log.FieldExchange, c.exchangeName,
		log.FieldQueue, c.outboundQueue)
	return nil
}

// SendText implements transport.Sender.
func (c *Client) SendText(ctx context.Context, owner core.OwnerID, text string) error {
	return c.publishOutbound(ctx, transport.Outbound{OwnerID: owner, Text: text})
}

// SendImage implements transport.Sender.
func (c *Client) SendImage(ctx context.Context, owner core.OwnerID, image []byte) error {
	return c.publishOutbound(ctx, transport.Outbound{OwnerID: owner, Image: image})
}

// ConsumeInbound delivers inbound messages to the handler. Messages that
// fail to decode are rejected without requeue; handler errors requeue the
// delivery so a transient failure is retried.
func (c *Client) ConsumeInbound(ctx context.Context, handler func(context.Context, transport.Inbound) error) error {
	msgs, err := c.channel.Consume(
		c.inboundQueue, // queue
		"",             // consumer
		false,          // auto-ack (we want manual ack)
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,            // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.Info("started consuming inbound messages", log.FieldQueue, c.inboundQueue)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping inbound consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("inbound channel closed")
			}

			var msg transport.Inbound
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				c.logger.Error("failed to decode inbound message", log.FieldError, err.Error())
				delivery.Nack(false, false)
				continue
			}

			if err := handler(ctx, msg); err != nil {
				c.logger.Error("failed to handle inbound message",
					log.FieldOwnerID, int64(msg.OwnerID), log.FieldError, err.Error())
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
