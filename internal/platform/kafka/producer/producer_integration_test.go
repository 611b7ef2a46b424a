//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"attestor/internal/platform/kafka/producer"
	"attestor/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())
	prod, err := producer.New(producer.Config{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close(5 * time.Second)
	}
}

func (s *ProducerIntegrationSuite) TestProduceDeliversKeyValueAndHeaders() {
	ctx := context.Background()
	topic := "attestor-produce-test"
	wallet := "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	s.Require().NoError(s.kafka.EnsureTopic(ctx, topic))

	err := s.producer.Produce(ctx, &producer.Message{
		Topic:   topic,
		Key:     []byte(wallet),
		Value:   []byte(`{"outcome":"issued"}`),
		Headers: map[string]string{"outcome": "issued", "request_id": "req-1"},
	})
	s.Require().NoError(err)

	record, err := s.kafka.FirstRecord(ctx, topic, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == wallet
	})
	s.Require().NoError(err, "message should be consumable")
	s.JSONEq(`{"outcome":"issued"}`, string(record.Value))

	headers := containers.HeaderMap(record)
	s.Equal("issued", headers["outcome"])
	s.Equal("req-1", headers["request_id"])
}

func (s *ProducerIntegrationSuite) TestPing() {
	s.NoError(s.producer.Ping(context.Background()))
}

func (s *ProducerIntegrationSuite) TestProduceAfterCloseFails() {
	prod, err := producer.New(producer.Config{Brokers: s.kafka.Brokers}, nil)
	s.Require().NoError(err)
	prod.Close(time.Second)

	err = prod.Produce(context.Background(), &producer.Message{Topic: "t", Value: []byte("x")})
	s.ErrorIs(err, producer.ErrClosed)
}
