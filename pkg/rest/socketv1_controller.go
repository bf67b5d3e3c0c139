package rest

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/artistmail/webmail/pkg/metric"
	"github.com/artistmail/webmail/pkg/msghub"
	"github.com/artistmail/webmail/pkg/rest/model"
	"github.com/artistmail/webmail/pkg/server/web"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Updates queued for a slow client before it is dropped.
	listenerQueueLen = 100
)

var errListenerClosed = errors.New("monitor listener closed")

// options for gorilla connection upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// msgListener relays hub updates to a single websocket client.
type msgListener struct {
	c       chan msghub.Update // Queue of updates from Receive()
	mailbox string             // Mailbox to monitor, "" == all updates

	closeOnce sync.Once
	done      chan struct{}
}

// newMsgListener creates a listener and registers it.  A non-empty mailbox restricts the mailbox
// scoped updates sent to the client to that mailbox; session and notice updates always pass.
func newMsgListener(hub *msghub.Hub, mailbox string) *msgListener {
	ml := &msgListener{
		c:       make(chan msghub.Update, listenerQueueLen),
		mailbox: mailbox,
		done:    make(chan struct{}),
	}
	hub.AddListener(ml)
	return ml
}

// Receive implements msghub.Listener.  Returning an error unregisters the listener, which
// happens once the socket is closed or the client falls behind.
func (ml *msgListener) Receive(u msghub.Update) error {
	if ml.mailbox != "" && u.Mailbox != "" && ml.mailbox != u.Mailbox {
		return nil
	}
	select {
	case <-ml.done:
		return errListenerClosed
	default:
	}
	select {
	case ml.c <- u:
		return nil
	default:
		log.Warn().Str("module", "rest").Str("proto", "WebSocket").Msg("Monitor client too slow")
		ml.Close()
		return errListenerClosed
	}
}

// WSReader makes sure the websocket client is still connected, discards any messages from client
func (ml *msgListener) WSReader(conn *websocket.Conn) {
	slog := log.With().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Logger()
	defer ml.Close()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		slog.Debug().Msg("Got pong")
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				// Unexpected close code
				slog.Warn().Err(err).Msg("Socket error")
			} else {
				slog.Debug().Msg("Closing socket")
			}
			break
		}
	}
}

// WSWriter sends queued updates and keeps the connection alive with pings.
func (ml *msgListener) WSWriter(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ml.Close()
	}()

	for {
		select {
		case u := <-ml.c:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteJSON(monitorEvent(u)) != nil {
				// Write failed
				return
			}
		case <-ml.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			// Send ping
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if conn.WriteMessage(websocket.PingMessage, []byte{}) != nil {
				// Write error
				return
			}
			log.Debug().Str("module", "rest").Str("proto", "WebSocket").
				Str("remote", conn.RemoteAddr().String()).Msg("Sent ping")
		}
	}
}

// Close removes the listener registration.  Safe to call more than once.
func (ml *msgListener) Close() {
	ml.closeOnce.Do(func() {
		// The hub drops the listener when its next Receive fails.
		close(ml.done)
	})
}

// monitorEvent converts a hub update to its wire form.
func monitorEvent(u msghub.Update) *model.JSONMonitorEventV1 {
	return &model.JSONMonitorEventV1{
		Variant: string(u.Kind),
		Mailbox: u.Mailbox,
		ID:      model.ID(u.ID),
		Count:   u.Count,
		Unread:  u.Unread,
		Read:    u.IsRead,
		Starred: u.IsStarred,
		Level:   u.Level,
		Text:    u.Text,
		Email:   u.Email,
		To:      u.To,
		Subject: u.Subject,
	}
}

// MonitorV1 is a web handler which upgrades the connection to a websocket and streams controller
// updates, beginning with the hub's history.  ?mailbox=name limits mailbox updates to one mailbox.
func MonitorV1(w http.ResponseWriter, req *http.Request, ctx *web.Context) (err error) {
	mailbox := req.URL.Query().Get("mailbox")
	// Upgrade to Websocket.
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}
	metric.MonitorClients.Add(1)
	defer func() {
		_ = conn.Close()
		metric.MonitorClients.Add(-1)
	}()
	log.Debug().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Str("mailbox", mailbox).
		Msg("Upgraded to WebSocket")
	// Create, register listener; then interact with conn.
	ml := newMsgListener(ctx.MsgHub, mailbox)
	go ml.WSWriter(conn)
	ml.WSReader(conn)
	return nil
}
