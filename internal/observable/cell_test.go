package observable

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestSetNotifiesOnlyOnChange(t *testing.T) {
	c := NewComparable(1)
	var got [][2]int
	c.Subscribe(func(v, prev int) { got = append(got, [2]int{v, prev}) })

	assert.Equal(t, c.Set(1), false)
	assert.Equal(t, c.Set(2), true)
	assert.Equal(t, c.Set(2), false)
	assert.Equal(t, c.Set(3), true)

	assert.Equal(t, got, [][2]int{{2, 1}, {3, 2}})
	assert.Equal(t, c.Get(), 3)
}

func TestStructuralEquality(t *testing.T) {
	type pair struct{ a, b []int }
	c := New(pair{}, func(x, y pair) bool {
		return len(x.a) == len(y.a) && len(x.b) == len(y.b)
	})
	calls := 0
	c.Subscribe(func(pair, pair) { calls++ })

	c.Set(pair{a: []int{1}})
	c.Set(pair{a: []int{2}}) // equal by the supplied comparison
	assert.Equal(t, calls, 1)
}

func TestUnsubscribe(t *testing.T) {
	c := NewComparable("a")
	calls := 0
	stop := c.Subscribe(func(string, string) { calls++ })
	c.Set("b")
	stop()
	c.Set("c")
	assert.Equal(t, calls, 1)
	assert.Equal(t, c.Subscribers(), 0)
}

func TestListenerPanicDoesNotStopSiblings(t *testing.T) {
	var reported []error
	c := NewComparable(0, WithErrorHandler(func(err error) { reported = append(reported, err) }))

	var order []string
	c.Subscribe(func(int, int) { order = append(order, "first") })
	c.Subscribe(func(int, int) { panic("boom") })
	c.Subscribe(func(int, int) { order = append(order, "third") })

	c.Set(1)
	assert.Equal(t, order, []string{"first", "third"})
	assert.Equal(t, len(reported), 1)
}

func TestNestedSetIsQueuedNotDropped(t *testing.T) {
	c := NewComparable(0)
	var seen []int
	c.Subscribe(func(v, _ int) {
		seen = append(seen, v)
		if v < 3 {
			c.Set(v + 1)
		}
	})
	c.Set(1)

	assert.Equal(t, seen, []int{1, 2, 3})
	assert.Equal(t, c.Get(), 3)
}

func TestNestedSetAppliesImmediately(t *testing.T) {
	c := NewComparable(0)
	var inner int
	c.Subscribe(func(v, _ int) {
		if v == 1 {
			c.Set(10)
			inner = c.Get()
		}
	})
	c.Set(1)
	assert.Equal(t, inner, 10)
}

func TestOnceFiresOnce(t *testing.T) {
	c := NewComparable(0)
	calls := 0
	c.Once(func(int, int) { calls++ })
	c.Set(1)
	c.Set(2)
	assert.Equal(t, calls, 1)
	assert.Equal(t, c.Subscribers(), 0)
}

func TestOnceWithNestedSet(t *testing.T) {
	c := NewComparable(0)
	onceCalls := 0
	c.Subscribe(func(v, _ int) {
		if v == 1 {
			c.Set(2)
		}
	})
	c.Once(func(int, int) { onceCalls++ })
	c.Set(1)
	assert.Equal(t, onceCalls, 1)
}

func TestNext(t *testing.T) {
	c := NewComparable(0)
	go func() {
		time.Sleep(10 * time.Millisecond)
		c.Set(7)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	v, err := c.Next(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, v, 7)
}

func TestNextCancelled(t *testing.T) {
	c := NewComparable(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Next(ctx)
	assert.Equal(t, errors.Is(err, context.Canceled), true)
	assert.Equal(t, c.Subscribers(), 0)
}

func TestUpdateError(t *testing.T) {
	c := NewComparable(5)
	calls := 0
	c.Subscribe(func(int, int) { calls++ })
	changed, err := c.Update(func(int) (int, error) { return 0, errors.New("nope") })
	assert.Equal(t, changed, false)
	assert.NotEqual(t, err, nil)
	assert.Equal(t, c.Get(), 5)
	assert.Equal(t, calls, 0)
}

func TestUpdatePanicReleasesLock(t *testing.T) {
	c := NewComparable(1)
	func() {
		defer func() { assert.NotEqual(t, recover(), nil) }()
		c.Update(func(int) (int, error) { panic("boom") })
	}()

	done := make(chan int, 1)
	go func() {
		c.Set(2)
		done <- c.Get()
	}()
	select {
	case v := <-done:
		assert.Equal(t, v, 2)
	case <-time.After(time.Second):
		t.Fatal("cell still locked after panic")
	}
}

func TestConcurrentUpdatesAllApplied(t *testing.T) {
	c := NewComparable(0)
	var mu sync.Mutex
	notified := 0
	c.Subscribe(func(int, int) {
		mu.Lock()
		notified++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Update(func(v int) (int, error) { return v + 1, nil })
		}()
	}
	wg.Wait()

	assert.Equal(t, c.Get(), 50)
	mu.Lock()
	assert.Equal(t, notified, 50)
	mu.Unlock()
}

func TestMapAndFilter(t *testing.T) {
	src := NewComparable(2)
	doubled, stopMap := Map(src, func(v int) int { return v * 2 }, nil)
	even, stopFilter := Filter(src, func(v int) bool { return v%2 == 0 }, nil)
	defer stopMap()
	defer stopFilter()

	assert.Equal(t, doubled.Get(), 4)
	assert.Equal(t, even.Get(), 2)

	src.Set(3)
	assert.Equal(t, doubled.Get(), 6)
	assert.Equal(t, even.Get(), 0)

	stopMap()
	src.Set(5)
	assert.Equal(t, doubled.Get(), 6)
}
