package netx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_ReturnsResult(t *testing.T) {
	boom := errors.New("boom")

	require.NoError(t, Call(context.Background(), time.Second, func() error { return nil }))
	assert.ErrorIs(t, Call(context.Background(), time.Second, func() error { return boom }), boom)
}

func TestCall_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	err := Call(context.Background(), 10*time.Millisecond, func() error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCall_ParentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)

	err := Call(ctx, 0, func() error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
