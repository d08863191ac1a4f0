package firestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestOpen_RequiresProjectID(t *testing.T) {
	t.Setenv(envGoogleProjectID, "")

	_, err := Open(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project id is required")
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, defaultListLimit, listLimit(-3))
	assert.Equal(t, 7, listLimit(7))
}

func TestFlushAppliesStagedWritesInOrder(t *testing.T) {
	tx := &fsTx{}
	var applied []int
	for i := 1; i <= 3; i++ {
		i := i
		require.NoError(t, tx.stage(func() error {
			applied = append(applied, i)
			return nil
		}))
	}

	require.NoError(t, tx.flush())
	assert.Equal(t, []int{1, 2, 3}, applied)
	assert.Empty(t, tx.writes)
}

func TestFlushStopsOnFirstError(t *testing.T) {
	tx := &fsTx{}
	boom := status.Error(codes.Aborted, "contention")
	calls := 0
	_ = tx.stage(func() error { calls++; return boom })
	_ = tx.stage(func() error { calls++; return nil })

	require.ErrorIs(t, tx.flush(), boom)
	assert.Equal(t, 1, calls)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(status.Error(codes.NotFound, "missing")))
	assert.False(t, isNotFound(status.Error(codes.Internal, "boom")))
	assert.False(t, isNotFound(nil))
}
