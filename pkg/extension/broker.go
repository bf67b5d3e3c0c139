package extension

import (
	"sync"
)

// EventBroker maintains an ordered list of listeners for one type of event, where a listener may
// answer the event with a result of type R.
type EventBroker[E any, R interface{}] struct {
	mu        sync.RWMutex
	listeners []namedListener[func(E) *R]
}

type namedListener[F any] struct {
	name string
	fn   F
}

// Emit offers the event to each listener in order until one returns a non-nil result, which is
// returned to the caller.  Returns nil when no listener answers.
func (eb *EventBroker[E, R]) Emit(event *E) *R {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, l := range eb.listeners {
		// Listeners receive a copy; they answer through the result, not by mutation.
		if result := l.fn(*event); result != nil {
			return result
		}
	}

	return nil
}

// AddListener registers the named listener, replacing one with a duplicate name if present.
// Listeners should be added in order of priority, most significant first.
func (eb *EventBroker[E, R]) AddListener(name string, listener func(E) *R) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners = withoutListener(eb.listeners, name)
	eb.listeners = append(eb.listeners, namedListener[func(E) *R]{name, listener})
}

// RemoveListener unregisters the named listener.
func (eb *EventBroker[E, R]) RemoveListener(name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners = withoutListener(eb.listeners, name)
}

// Len returns the number of registered listeners.
func (eb *EventBroker[E, R]) Len() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	return len(eb.listeners)
}

func withoutListener[F any](ls []namedListener[F], name string) []namedListener[F] {
	for i, l := range ls {
		if l.name == name {
			return append(ls[:i:i], ls[i+1:]...)
		}
	}
	return ls
}
