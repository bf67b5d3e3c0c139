package extension

import (
	"errors"
	"sync"
	"time"
)

// AsyncEventBroker maintains a list of listeners interested in a specific type of event.  Events
// are delivered to all listeners in parallel, and no result is returned.
type AsyncEventBroker[E any] struct {
	mu        sync.RWMutex
	listeners []namedListener[func(E)]
	inflight  sync.WaitGroup
}

// Emit delivers the event to each registered listener on its own goroutine.
func (eb *AsyncEventBroker[E]) Emit(event *E) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, l := range eb.listeners {
		eb.inflight.Add(1)
		go func(fn func(E), ev E) {
			defer eb.inflight.Done()
			fn(ev)
		}(l.fn, *event)
	}
}

// Wait blocks until every delivery started by Emit has returned.
func (eb *AsyncEventBroker[E]) Wait() {
	eb.inflight.Wait()
}

// AddListener registers the named listener, replacing one with a duplicate name if present.
func (eb *AsyncEventBroker[E]) AddListener(name string, listener func(E)) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners = withoutListener(eb.listeners, name)
	eb.listeners = append(eb.listeners, namedListener[func(E)]{name, listener})
}

// RemoveListener unregisters the named listener.
func (eb *AsyncEventBroker[E]) RemoveListener(name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners = withoutListener(eb.listeners, name)
}

// Len returns the number of registered listeners.
func (eb *AsyncEventBroker[E]) Len() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	return len(eb.listeners)
}

// AsyncTestListener returns a func that will wait for an event and return it, or timeout
// with an error.  The listener removes itself after capacity events have been received.
func (eb *AsyncEventBroker[E]) AsyncTestListener(name string, capacity int) func() (*E, error) {
	events := make(chan E, capacity)
	eb.AddListener(name,
		func(ev E) {
			events <- ev
		})

	count := 0

	return func() (*E, error) {
		count++

		defer func() {
			if count >= capacity {
				eb.RemoveListener(name)
			}
		}()

		select {
		case ev := <-events:
			return &ev, nil

		case <-time.After(time.Second * 2):
			return nil, errors.New("timeout waiting for event")
		}
	}
}
