package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/Shivanand-hulikatti/campus-events/internal/logger"
	"github.com/Shivanand-hulikatti/campus-events/internal/model"
)

// Topic names, one per notice kind.
const (
	TopicRegistrationConfirmed = "REGISTRATION_CONFIRMED"
	TopicWaitlistAdded         = "WAITLIST_ADDED"
	TopicWaitlistPromoted      = "WAITLIST_PROMOTED"
	TopicEventUpdated          = "EVENT_UPDATED"
	TopicEventCancelled        = "EVENT_CANCELLED"
)

var topics = map[model.NoticeKind]string{
	model.NoticeRegistrationConfirmed: TopicRegistrationConfirmed,
	model.NoticeWaitlistAdded:         TopicWaitlistAdded,
	model.NoticeWaitlistPromoted:      TopicWaitlistPromoted,
	model.NoticeEventUpdated:          TopicEventUpdated,
	model.NoticeEventCancelled:        TopicEventCancelled,
}

// KafkaSink publishes notices for downstream email and push workers.
// Messages are keyed by event id so one event's notices stay ordered.
type KafkaSink struct {
	producer sarama.SyncProducer
	prefix   string
	logger   logger.Logger
}

func NewKafkaSink(producer sarama.SyncProducer, topicPrefix string, l logger.Logger) *KafkaSink {
	return &KafkaSink{producer: producer, prefix: topicPrefix, logger: l}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, n model.Notice) error {
	topic, ok := topics[n.Kind]
	if !ok {
		return fmt.Errorf("no topic for notice kind %q", n.Kind)
	}
	topic = s.prefix + topic

	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(n.EventID),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("timestamp"), Value: []byte(time.Now().UTC().Format(time.RFC3339))},
			{Key: []byte("kind"), Value: []byte(n.Kind)},
		},
	}

	partition, offset, err := s.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send kafka message: %w", err)
	}

	s.logger.Debug("Kafka message sent",
		"topic", topic,
		"partition", partition,
		"offset", offset,
		"key", n.EventID,
	)
	return nil
}

func (s *KafkaSink) Close() error {
	if err := s.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
