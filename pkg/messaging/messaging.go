// Package messaging defines how outbox events leave the process. Concrete
// transports live in the redis, rabbitmq and kafka subpackages.
package messaging

import (
	"context"
	"encoding/json"
	"time"
)

// Message is the envelope published for every outbox event.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	BusinessID string          `json:"business_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher delivers messages to a broker.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Config selects and configures a transport.
type Config struct {
	Driver       string
	URL          string
	Topic        string
	MaxRetries   int
	RetryBackoff time.Duration
	PoolSize     int
	MinIdleConns int
}

const (
	DriverRedis    = "redis"
	DriverRabbitMQ = "rabbitmq"
	DriverKafka    = "kafka"
)
