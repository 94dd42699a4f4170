package mcp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPoolRunsJob(t *testing.T) {
	p := NewWorkerPool(2)
	result, err := p.Run(context.Background(), func() (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, result)
}

func TestWorkerPoolBoundsConcurrency(t *testing.T) {
	p := NewWorkerPool(1)
	started := make(chan struct{})
	release := make(chan struct{})

	go func() {
		p.Run(context.Background(), func() (any, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()

	<-started

	var secondRan int32
	done := make(chan struct{})
	go func() {
		p.Run(context.Background(), func() (any, error) {
			atomic.StoreInt32(&secondRan, 1)
			return nil, nil
		})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second job ran while the pool's single slot was occupied")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&secondRan))
}

func TestWorkerPoolRespectsCancellation(t *testing.T) {
	p := NewWorkerPool(1)
	release := make(chan struct{})
	defer close(release)
	go p.Run(context.Background(), func() (any, error) {
		<-release
		return nil, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Run(ctx, func() (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.Equal(t, context.DeadlineExceeded, err)
}

func TestNewWorkerPoolDefaultsSize(t *testing.T) {
	p := NewWorkerPool(0)
	assert.Equal(t, 8, cap(p.sem))
}
