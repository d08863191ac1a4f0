package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRuntimeStorage_Memory(t *testing.T) {
	t.Parallel()

	storage, err := initRuntimeStorage(context.Background(), Config{StorageDriver: StorageDriverMemory}, log.WithField("test", "memory-storage"))
	require.NoError(t, err)
	assert.Equal(t, StorageDriverMemory, storage.driver)
	require.NotNil(t, storage.store)
	require.NoError(t, storage.store.Ping(context.Background()))
	require.NoError(t, storage.close())
}

func TestInitRuntimeStorage_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeStorage(context.Background(), Config{StorageDriver: StorageDriverPostgres}, log.WithField("test", "postgres-missing-dsn"))
	require.Error(t, err)
}

func TestInitRuntimeStorage_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeStorage(context.Background(), Config{StorageDriver: "sqlite"}, log.WithField("test", "unsupported-driver"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}
