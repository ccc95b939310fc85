package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/config"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
)

func TestNewPublisher_UnknownDriver(t *testing.T) {
	_, err := NewPublisher(context.Background(), config.BrokerConfig{Driver: "carrier-pigeon"}, logger.Nop())
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestNewPublisher_KafkaIsWrappedInBreaker(t *testing.T) {
	p, err := NewPublisher(context.Background(), config.BrokerConfig{
		Driver: messaging.DriverKafka,
		URL:    "localhost:9092",
		Topic:  "booking.events",
	}, logger.Nop())
	require.NoError(t, err)
	defer p.Close()

	_, ok := p.(*messaging.BreakerPublisher)
	assert.True(t, ok)
}
