package msghub

import (
	"container/ring"
	"context"

	"github.com/artistmail/webmail/pkg/extension"
	"github.com/artistmail/webmail/pkg/extension/event"
)

// Length of msghub operation queue
const opChanLen = 100

const listenerName = "msghub"

// Listener receives the contents of the history buffer, followed by new updates.
type Listener interface {
	Receive(u Update) error
}

// Hub relays controller updates on to its listeners.
type Hub struct {
	// history buffer, points next Update to write.  Proceeding non-nil entry is oldest Update
	history   *ring.Ring
	listeners map[Listener]struct{} // listeners interested in new updates
	opChan    chan func(h *Hub)     // operations queued for this actor
}

// New constructs a new Hub which will cache historyLen updates in memory for playback to future
// listeners, and subscribes it to the extension host's after-events.  Start must be called to
// begin processing.
func New(historyLen int, extHost *extension.Host) *Hub {
	hub := &Hub{
		history:   ring.New(historyLen),
		listeners: make(map[Listener]struct{}),
		opChan:    make(chan func(h *Hub), opChanLen),
	}

	events := extHost.Events
	events.AfterMailboxLoaded.AddListener(listenerName, func(ev event.MailboxListing) {
		hub.Dispatch(FromMailboxListing(ev))
	})
	events.AfterMessageUpdated.AddListener(listenerName, func(ev event.MessageFlags) {
		hub.Dispatch(FromMessageFlags(ev))
	})
	events.AfterMessageSent.AddListener(listenerName, func(ev event.OutboundMessage) {
		hub.Dispatch(FromOutboundMessage(ev))
	})
	events.AfterNotice.AddListener(listenerName, func(ev event.Notice) {
		hub.Dispatch(FromNotice(ev))
	})
	events.AfterSessionChanged.AddListener(listenerName, func(ev event.SessionChange) {
		if !ev.SignedIn {
			// Prior user's updates must not be replayed to the next session's listeners.
			hub.Clear()
		}
		hub.Dispatch(FromSessionChange(ev))
	})

	return hub
}

// Start Hub processing loop.
func (hub *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			// Shutdown
			close(hub.opChan)
			return
		case op := <-hub.opChan:
			op(hub)
		}
	}
}

// Dispatch queues an update for broadcast by the hub.  The update will be placed into the
// history buffer and then relayed to all registered listeners.
func (hub *Hub) Dispatch(u Update) {
	hub.opChan <- func(h *Hub) {
		if h.history != nil {
			// Add to history buffer
			h.history.Value = u
			h.history = h.history.Next()

			// Deliver update to all listeners, removing listeners if they return an error
			for l := range h.listeners {
				if err := l.Receive(u); err != nil {
					delete(h.listeners, l)
				}
			}
		}
	}
}

// Clear empties the history buffer; registered listeners are unaffected.
func (hub *Hub) Clear() {
	hub.opChan <- func(h *Hub) {
		r := h.history
		for i, n := 0, h.history.Len(); i < n; i++ {
			r.Value = nil
			r = r.Next()
		}
	}
}

// AddListener registers a listener to receive broadcasted updates.
func (hub *Hub) AddListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		// Playback log
		h.history.Do(func(v interface{}) {
			if v != nil {
				_ = l.Receive(v.(Update))
			}
		})

		// Add to listeners
		h.listeners[l] = struct{}{}
	}
}

// RemoveListener deletes a listener registration, it will cease to receive updates.
func (hub *Hub) RemoveListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		delete(h.listeners, l)
	}
}

// Sync blocks until the msghub has processed its queue up to this point, useful
// for unit tests.
func (hub *Hub) Sync() {
	done := make(chan struct{})
	hub.opChan <- func(h *Hub) {
		close(done)
	}
	<-done
}
