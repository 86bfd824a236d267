// Package kafka builds the sarama producer used to publish notices.
package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	"github.com/Shivanand-hulikatti/campus-events/internal/config"
)

func NewProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.RequiredAcks = sarama.RequiredAcks(cfg.ProducerRequiredAcks)
	saramaCfg.Producer.Retry.Max = cfg.ProducerRetryMax
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.Compression = sarama.CompressionSnappy

	prod, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return prod, nil
}
