package app

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	producer, err := initKafkaProducer(nil, "storefront", log.WithField("test", "kafka"))

	require.NoError(t, err)
	assert.Nil(t, producer)
}

func TestInitKafkaProducer_UnreachableBroker(t *testing.T) {
	producer, err := initKafkaProducer([]string{"127.0.0.1:1"}, "storefront", log.WithField("test", "kafka"))

	require.Error(t, err)
	assert.Nil(t, producer)
}

func TestCloseKafka_NilProducer(t *testing.T) {
	assert.NotPanics(t, func() {
		closeKafka(nil, log.WithField("test", "kafka"))
	})
}
