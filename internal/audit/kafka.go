package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/IBM/sarama"
)

const DefaultKafkaTopic = "authz.audit"

// KafkaSink publishes entries to a topic, keyed by organization so a tenant's entries
// stay ordered within one partition.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(producer sarama.SyncProducer, topic string) (*KafkaSink, error) {
	if producer == nil {
		return nil, errors.New("audit: kafka producer is required")
	}
	if strings.TrimSpace(topic) == "" {
		topic = DefaultKafkaTopic
	}
	return &KafkaSink{producer: producer, topic: topic}, nil
}

// NewKafkaProducer dials brokers with acks from all in-sync replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

func (s *KafkaSink) AppendAudit(_ context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := e.OrgID
	if key == "" {
		key = e.PlatformID
	}
	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publish audit entry: %w", err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.producer.Close() }
