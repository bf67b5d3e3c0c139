package extension

import (
	"github.com/artistmail/webmail/pkg/extension/event"
)

// Host defines extension points for the webmail controller.
type Host struct {
	Events *Events
}

// Events defines all the event types supported by the extension host.
//
// Before-events let extensions alter what the controller is about to do.  They are processed
// synchronously inside the triggering operation; the first listener to respond with a non-nil
// value determines the outcome, and the remaining listeners will not be called.
//
// After-events report state changes once they have been applied locally.  They are processed
// asynchronously with respect to the controller.
type Events struct {
	AfterMailboxLoaded  AsyncEventBroker[event.MailboxListing]
	AfterMessageUpdated AsyncEventBroker[event.MessageFlags]
	AfterMessageSent    AsyncEventBroker[event.OutboundMessage]
	AfterNotice         AsyncEventBroker[event.Notice]
	AfterSessionChanged AsyncEventBroker[event.SessionChange]
	BeforeMessageSent   EventBroker[event.OutboundMessage, event.OutboundMessage]
}

// Void indicates the event emitter will ignore any value returned by listeners.
type Void struct{}

// NewHost creates a new extension host.
func NewHost() *Host {
	return &Host{Events: &Events{}}
}

// Wait blocks until every after-event delivery in progress has returned.
func (h *Host) Wait() {
	e := h.Events
	e.AfterMailboxLoaded.Wait()
	e.AfterMessageUpdated.Wait()
	e.AfterMessageSent.Wait()
	e.AfterNotice.Wait()
	e.AfterSessionChanged.Wait()
}
