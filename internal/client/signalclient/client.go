// Package signalclient dials the studio's signaling endpoint and exposes
// the server->client event stream as typed values.
package signalclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/castform/castform/internal/core"
	"github.com/castform/castform/internal/domain"
)

const writeWait = 5 * time.Second

// Event is one decoded server->client message. Exactly one of the payload
// fields is set, matching Type.
type Event struct {
	Type         core.EventType
	PeerArrived  *core.PeerArrived
	Signal       *core.SignalDeliver
	PeerLeft     *core.PeerLeft
	SessionEnded *core.SessionEnded
	Err          *core.ErrorEvent
}

type Client struct {
	conn   *websocket.Conn
	events chan Event

	mu     sync.Mutex
	closed bool
}

// Dial connects to the /ws endpoint of serverURL. A non-empty token is
// passed along so the server can resolve the identity itself.
func Dial(ctx context.Context, serverURL, token string) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/ws"
	if token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	c := &Client{conn: conn, events: make(chan Event, 32)}
	go c.readPump()
	return c, nil
}

// Events delivers decoded events in arrival order. Closed when the
// connection goes away.
func (c *Client) Events() <-chan Event { return c.events }

func (c *Client) readPump() {
	defer close(c.events)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "signalclient").Msg("read error")
			return
		}
		evt, err := decode(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signalclient").Msg("bad event")
			continue
		}
		c.events <- evt
	}
}

func decode(data []byte) (Event, error) {
	var env core.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, err
	}
	evt := Event{Type: env.Type}
	switch env.Type {
	case core.EvtPeerArrived:
		evt.PeerArrived = &core.PeerArrived{}
		return evt, json.Unmarshal(data, evt.PeerArrived)
	case core.EvtSignal:
		evt.Signal = &core.SignalDeliver{}
		return evt, json.Unmarshal(data, evt.Signal)
	case core.EvtPeerLeft:
		evt.PeerLeft = &core.PeerLeft{}
		return evt, json.Unmarshal(data, evt.PeerLeft)
	case core.EvtSessionEnded:
		evt.SessionEnded = &core.SessionEnded{}
		return evt, nil
	case core.EvtError:
		evt.Err = &core.ErrorEvent{}
		return evt, json.Unmarshal(data, evt.Err)
	}
	return evt, errors.New("unknown event type " + string(env.Type))
}

func (c *Client) write(v any) error {
	frame, err := core.Encode(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("client closed")
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

func (c *Client) Join(sid domain.SessionID, user domain.User) error {
	return c.write(core.JoinSession{Type: core.EvtJoinSession, SessionID: sid, User: user})
}

func (c *Client) Signal(to domain.ConnectionID, payload json.RawMessage) error {
	return c.write(core.SignalSend{Type: core.EvtSignal, To: to, Payload: payload})
}

func (c *Client) Leave() error {
	return c.write(core.Envelope{Type: core.EvtLeaveSession})
}

func (c *Client) End() error {
	return c.write(core.Envelope{Type: core.EvtEndSession})
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
}
