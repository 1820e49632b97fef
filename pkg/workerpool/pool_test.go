package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_ReturnsTaskError(t *testing.T) {
	p := New(&Config{MaxWorkers: 2, QueueSize: 4}, nil)
	defer p.Shutdown(context.Background())

	want := errors.New("boom")
	err := p.Submit(context.Background(), func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}

func TestSubmit_RecoversPanic(t *testing.T) {
	p := New(nil, nil)
	defer p.Shutdown(context.Background())

	err := p.Submit(context.Background(), func(ctx context.Context) error { panic("bad") })
	assert.Error(t, err)
}

func TestShutdown_DrainsAsyncTasks(t *testing.T) {
	p := New(&Config{MaxWorkers: 1, QueueSize: 16}, nil)

	var n atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, p.SubmitAsync(context.Background(), func(ctx context.Context) error {
			n.Add(1)
			return nil
		}))
	}
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int32(10), n.Load())

	assert.ErrorIs(t, p.SubmitAsync(context.Background(), func(ctx context.Context) error { return nil }), ErrWorkerPoolClosed)
}
