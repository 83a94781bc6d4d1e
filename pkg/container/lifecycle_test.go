package container

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testLifecycle() *Lifecycle {
	return NewLifecycle(zap.NewNop().Sugar())
}

func TestShutdownRunsHooksInReverseOrder(t *testing.T) {
	lc := testLifecycle()
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		lc.OnShutdown(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	lc.Shutdown(context.Background(), "test")
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestShutdownIdempotentUnderConcurrency(t *testing.T) {
	lc := testLifecycle()
	var mu sync.Mutex
	counts := map[string]int{}
	for _, name := range []string{"a", "b", "c"} {
		name := name
		lc.OnShutdown(name, func(context.Context) error {
			mu.Lock()
			counts[name]++
			mu.Unlock()
			return nil
		})
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lc.Shutdown(context.Background(), "concurrent")
		}()
	}
	wg.Wait()

	for name, n := range counts {
		assert.LessOrEqual(t, n, 1, "hook %s ran more than once", name)
	}
}

func TestFailingHookDoesNotBlockOthers(t *testing.T) {
	lc := testLifecycle()
	var order []string
	lc.OnShutdown("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	lc.OnShutdown("failing", func(context.Context) error {
		order = append(order, "failing")
		return errors.New("cleanup failed")
	})
	lc.OnShutdown("panicking", func(context.Context) error {
		order = append(order, "panicking")
		panic("cleanup panic")
	})

	lc.Shutdown(context.Background(), "test")
	assert.Equal(t, []string{"panicking", "failing", "first"}, order)
}

func TestHookAfterShutdownIsDropped(t *testing.T) {
	lc := testLifecycle()
	lc.Shutdown(context.Background(), "test")
	ran := false
	lc.OnShutdown("late", func(context.Context) error {
		ran = true
		return nil
	})
	lc.Shutdown(context.Background(), "again")
	assert.False(t, ran)
}
