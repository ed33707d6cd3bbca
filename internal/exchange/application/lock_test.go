package application

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/exchange/internal/exchange/domain"
)

func TestLockSetMutualExclusion(t *testing.T) {
	locks := NewLockSet()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.Acquire(lockMaster)
			defer release()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLockSetIndependentNames(t *testing.T) {
	locks := NewLockSet()

	releaseA := locks.Acquire("a")
	// 不同名字的锁互不阻塞
	releaseB := locks.Acquire("b")
	releaseB()
	releaseA()
}

func TestEventBusDispatchOrder(t *testing.T) {
	bus := NewEventBus()

	var seen []string
	bus.Subscribe(func(_ context.Context, event domain.Event) error {
		seen = append(seen, event.Key)
		return nil
	})

	events := []domain.Event{
		domain.NewEvent("t", "first", nil),
		domain.NewEvent("t", "second", nil),
		domain.NewEvent("t", "third", nil),
	}
	require.NoError(t, bus.Dispatch(context.Background(), events))
	assert.Equal(t, []string{"first", "second", "third"}, seen)
}

func TestEventBusAggregatesErrors(t *testing.T) {
	bus := NewEventBus()
	bus.Subscribe(func(_ context.Context, event domain.Event) error {
		if event.Key == "bad" {
			return assert.AnError
		}
		return nil
	})

	err := bus.Dispatch(context.Background(), []domain.Event{
		domain.NewEvent("t", "ok", nil),
		domain.NewEvent("t", "bad", nil),
	})
	assert.Error(t, err)
}
