package extension_test

import (
	"testing"

	"github.com/artistmail/webmail/pkg/extension"
	"github.com/artistmail/webmail/pkg/extension/event"
	"github.com/stretchr/testify/assert"
)

func TestBrokerEmitCallsListenersInOrder(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	var calls []string
	for _, name := range []string{"a", "b", "c"} {
		name := name
		broker.AddListener(name, func(s string) *bool {
			calls = append(calls, name+":"+s)
			return nil
		})
	}

	want := "ping"
	got := broker.Emit(&want)
	assert.Nil(t, got)
	assert.Equal(t, []string{"a:ping", "b:ping", "c:ping"}, calls)
	assert.Equal(t, 3, broker.Len())
}

func TestBrokerEmitCapturesFirstResult(t *testing.T) {
	broker := &extension.EventBroker[event.OutboundMessage, event.OutboundMessage]{}

	rewrite := func(subject string) func(event.OutboundMessage) *event.OutboundMessage {
		return func(m event.OutboundMessage) *event.OutboundMessage {
			m.Subject = subject
			return &m
		}
	}
	broker.AddListener("pass", func(event.OutboundMessage) *event.OutboundMessage { return nil })
	broker.AddListener("first", rewrite("first"))
	broker.AddListener("second", rewrite("second"))

	msg := event.OutboundMessage{To: "fan@mail.local", Subject: "tour"}
	got := broker.Emit(&msg)
	if assert.NotNil(t, got) {
		assert.Equal(t, "first", got.Subject)
		assert.Equal(t, "fan@mail.local", got.To)
	}
	assert.Equal(t, "tour", msg.Subject, "original event must not be mutated")
}

func TestBrokerAddingDuplicateNameReplacesPrevious(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	var firstGot, secondGot string
	broker.AddListener("dup", func(s string) *bool {
		firstGot = s
		return nil
	})
	broker.AddListener("dup", func(s string) *bool {
		secondGot = s
		return nil
	})

	want := "hi"
	broker.Emit(&want)
	assert.Empty(t, firstGot)
	assert.Equal(t, want, secondGot)
	assert.Equal(t, 1, broker.Len())
}

func TestBrokerRemovingListenerSuccessful(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}

	var firstGot, secondGot string
	broker.AddListener("1", func(s string) *bool {
		firstGot = s
		return nil
	})
	broker.AddListener("2", func(s string) *bool {
		secondGot = s
		return nil
	})
	broker.RemoveListener("1")

	want := "hi"
	broker.Emit(&want)
	assert.Empty(t, firstGot)
	assert.Equal(t, want, secondGot)
}

func TestBrokerRemovingMissingListener(t *testing.T) {
	broker := &extension.EventBroker[string, bool]{}
	broker.RemoveListener("doesn't crash")
	assert.Equal(t, 0, broker.Len())
}
