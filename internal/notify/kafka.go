package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/segmentio/kafka-go"
)

var ErrMissingKafkaConfig = errors.New("kafka brokers and topic are required")

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

type kafkaEnvelope struct {
	Target  string    `json:"target"`
	Message string    `json:"message"`
	SentAt  time.Time `json:"sent_at"`
}

// KafkaNotifier publishes each message to a topic and waits for all in-sync replicas.
type KafkaNotifier struct {
	writer messageWriter
	clock  clockwork.Clock
}

func NewKafkaNotifier(brokers []string, topic string, clock clockwork.Clock) (*KafkaNotifier, error) {
	var addrs []string
	for _, broker := range brokers {
		if broker = strings.TrimSpace(broker); broker != "" {
			addrs = append(addrs, broker)
		}
	}
	topic = strings.TrimSpace(topic)
	if len(addrs) == 0 || topic == "" {
		return nil, ErrMissingKafkaConfig
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: false,
	}
	return newKafkaNotifier(writer, clock), nil
}

func newKafkaNotifier(writer messageWriter, clock clockwork.Clock) *KafkaNotifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &KafkaNotifier{writer: writer, clock: clock}
}

func (n *KafkaNotifier) Notify(ctx context.Context, target, message string) Result {
	now := n.clock.Now().UTC()
	payload, err := json.Marshal(kafkaEnvelope{Target: target, Message: message, SentAt: now})
	if err != nil {
		return Failed("encode message: %v", err)
	}
	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(target),
		Value: payload,
		Time:  now,
	})
	if err != nil {
		return Failed("publish: %v", err)
	}
	return Delivered()
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
