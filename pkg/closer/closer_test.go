package closer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseRunsFuncsInLIFOOrder(t *testing.T) {
	c := NewCloser(time.Second)

	var order []int
	for i := 1; i <= 3; i++ {
		c.Add(func(ctx context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestCloseCollectsErrors(t *testing.T) {
	c := NewCloser(time.Second)
	c.Add(func(ctx context.Context) error { return errors.New("redis close failed") })
	c.Add(func(ctx context.Context) error { return nil })

	err := c.Close(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis close failed")
}

func TestCloseRunsOnlyOnce(t *testing.T) {
	c := NewCloser(time.Second)

	var calls int
	c.Add(func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestCloseInterruptedFallsBackToForced(t *testing.T) {
	c := NewCloser(time.Second)

	var calls atomic.Int32
	c.Add(func(ctx context.Context) error {
		// первая попытка не успевает в дедлайн Close, повторная закрывается сразу
		if calls.Add(1) == 1 {
			time.Sleep(300 * time.Millisecond)
			return errors.New("slow close")
		}
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.Close(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown interrupted")
	assert.EqualValues(t, 2, calls.Load())
}
