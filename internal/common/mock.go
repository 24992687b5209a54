package common

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
)

type PublishedMessage struct {
	Body     []byte
	Key      BindingKey
	Exchange Exchange
}

// MockMessageProducer records every published message. Err, when set, is
// returned instead of recording.
type MockMessageProducer struct {
	mu       sync.Mutex
	Messages []PublishedMessage
	Err      error
}

func (m *MockMessageProducer) Publish(ctx context.Context, msg []byte, key BindingKey, exchange Exchange) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	m.Messages = append(m.Messages, PublishedMessage{Body: msg, Key: key, Exchange: exchange})
	return nil
}

// ByKey returns the bodies published under key in publish order.
func (m *MockMessageProducer) ByKey(key BindingKey) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var bodies [][]byte
	for _, msg := range m.Messages {
		if msg.Key == key {
			bodies = append(bodies, msg.Body)
		}
	}

	return bodies
}

// MockMessageConsumer delivers Bodies once and then closes the channel.
type MockMessageConsumer struct {
	mock.Mock
	Bodies [][]byte
}

func (m *MockMessageConsumer) Consume(key BindingKey, exchange Exchange, queue Queue) (<-chan amqp.Delivery, error) {
	args := m.Called(key, exchange, queue)
	if err := args.Error(0); err != nil {
		return nil, err
	}

	msgsChan := make(chan amqp.Delivery)

	go func() {
		defer close(msgsChan)

		for _, body := range m.Bodies {
			msgsChan <- amqp.Delivery{Body: body}
		}
	}()

	return msgsChan, nil
}

type LogEntry struct {
	Level string
	Msg   string
	Args  []any
}

// RecordingLogger keeps log entries in memory.
type RecordingLogger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

func (l *RecordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *RecordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args) }

// Count returns how many entries were logged at level.
func (l *RecordingLogger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}

	return n
}

// Messages returns the messages logged at level.
func (l *RecordingLogger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var msgs []string
	for _, e := range l.Entries {
		if e.Level == level {
			msgs = append(msgs, e.Msg)
		}
	}

	return msgs
}

func (l *RecordingLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("%+v", l.Entries)
}
