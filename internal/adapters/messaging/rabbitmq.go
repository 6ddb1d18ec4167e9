package messaging

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/config"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

// Channel is the part of *amqp.Channel the broker publishes through.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQBroker implements ports.ReportEventPublisher using RabbitMQ.
type RabbitMQBroker struct {
	conn      *amqp.Connection
	ch        Channel
	queueName string
	cb        *gobreaker.CircuitBreaker
}

var _ ports.ReportEventPublisher = (*RabbitMQBroker)(nil)

func NewRabbitMQBroker(amqpURL, queueName string, log *zap.SugaredLogger) (*RabbitMQBroker, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Declare the queue (idempotent)
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	broker := NewRabbitMQBrokerWithChannel(ch, queueName, config.NewCircuitBreaker("RabbitMQ-Publisher", log))
	broker.conn = conn
	return broker, nil
}

// NewRabbitMQBrokerWithChannel wraps an already declared channel.
func NewRabbitMQBrokerWithChannel(ch Channel, queueName string, cb *gobreaker.CircuitBreaker) *RabbitMQBroker {
	return &RabbitMQBroker{ch: ch, queueName: queueName, cb: cb}
}

func (rmq *RabbitMQBroker) Close() error {
	if rmq.ch != nil {
		if err := rmq.ch.Close(); err != nil {
			return err
		}
	}
	if rmq.conn != nil {
		return rmq.conn.Close()
	}
	return nil
}
