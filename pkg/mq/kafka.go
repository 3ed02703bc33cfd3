package mq

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
)

// Producer publishes keyed messages. Messages with the same key land on the
// same partition, so per-user ledger changes stay ordered.
type Producer interface {
	Send(ctx context.Context, topic, key, value string) error
	Close() error
}

type kafkaProducer struct {
	producer sarama.SyncProducer
}

func NewProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll // tüm replikaların onayı
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_1_0_0
	return cfg
}

func NewKafkaProducer(brokers []string) (Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &kafkaProducer{producer: producer}, nil
}

// NewProducer wraps an existing sync producer, e.g. sarama/mocks in tests.
func NewProducer(producer sarama.SyncProducer) Producer {
	return &kafkaProducer{producer: producer}
}

func (p *kafkaProducer) Send(ctx context.Context, topic, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(value),
	}
	_, _, err := p.producer.SendMessage(msg)
	return err
}

func (p *kafkaProducer) Close() error {
	return p.producer.Close()
}
