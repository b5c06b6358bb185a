package mq

import (
	"context"
	"time"
)

// MessageQueue defines the unified interface for message queue operations.
// The abstraction keeps the judging worker independent of the broker
// implementation (Kafka today).
type MessageQueue interface {
	Producer
	Consumer

	// Ping verifies the message queue connection is alive
	Ping(ctx context.Context) error

	// Close closes the message queue connection
	Close() error
}

// Producer defines the interface for publishing messages
type Producer interface {
	// Publish publishes a message to the specified topic. The context
	// deadline bounds how long the broker may take to acknowledge; callers
	// that need fail-fast enqueue semantics pass a short deadline.
	Publish(ctx context.Context, topic string, message *Message) error
}

// Consumer defines the interface for consuming messages
type Consumer interface {
	// Subscribe registers a handler for a topic. The handler should return
	// nil on success or an error to trigger the retry policy.
	Subscribe(ctx context.Context, topic string, handler HandlerFunc, opts *SubscribeOptions) error

	// Start starts consuming messages
	Start() error

	// Stop gracefully stops consuming messages
	Stop() error
}

// Message represents a message in the queue
type Message struct {
	// ID is the unique identifier for the message
	ID string `json:"id"`

	// Body is the message payload
	Body []byte `json:"body"`

	// Headers contains metadata about the message
	Headers map[string]string `json:"headers"`

	// Timestamp is when the message was created
	Timestamp time.Time `json:"timestamp"`

	// Retry information
	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// HandlerFunc is the function signature for message handlers
type HandlerFunc func(ctx context.Context, message *Message) error

// SubscribeOptions defines options for subscribing to a topic
type SubscribeOptions struct {
	// ConsumerGroup is the consumer group name
	ConsumerGroup string

	// Concurrency sets the number of concurrent workers
	// Default: 1 (one in-flight job per worker instance)
	Concurrency int

	// MaxRetries sets the maximum number of attempts for failed messages
	// Default: 3
	MaxRetries int

	// RetryDelay is the base delay between retries; the delay doubles on
	// each subsequent attempt. Default: 3 seconds.
	RetryDelay time.Duration

	// MaxRetryDelay caps the exponential backoff. Default: 30 seconds.
	MaxRetryDelay time.Duration

	// DeadLetterTopic is where messages go after max retries
	DeadLetterTopic string
}

// SetDefaults sets default values for subscribe options
func (o *SubscribeOptions) SetDefaults() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 3 * time.Second
	}
	if o.MaxRetryDelay <= 0 {
		o.MaxRetryDelay = 30 * time.Second
	}
}

// NewMessage creates a new message with the given body
func NewMessage(body []byte) *Message {
	return &Message{
		Body:      body,
		Headers:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// SetHeader sets a header value
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// GetHeader retrieves a header value
func (m *Message) GetHeader(key string) (string, bool) {
	if m.Headers == nil {
		return "", false
	}
	val, ok := m.Headers[key]
	return val, ok
}

// ComputeBackoff returns the delay before the given retry attempt.
// Attempt 1 waits base, attempt 2 waits 2*base, doubling up to max.
func ComputeBackoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if max > 0 && delay >= max {
			return max
		}
		delay *= 2
	}
	if max > 0 && delay > max {
		return max
	}
	return delay
}
