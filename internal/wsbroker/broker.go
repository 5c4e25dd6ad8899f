// Package wsbroker fans the event bus out to WebSocket clients: it owns the
// single /ws endpoint, per-client subscription sets, heartbeats, and
// client-to-server command dispatch. It is the only package aware of
// sockets; everything upstream speaks the bus's topic/envelope protocol.
package wsbroker

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/linkband-io/linkband-server/internal/bus"
)

const (
	heartbeatInterval = 15 * time.Second
	clientTimeout     = 45 * time.Second
	writeTimeout      = 1 * time.Second
)

// DefaultTopics is the subscription set every new client starts with.
var DefaultTopics = []string{"raw.*", "processed.*", "event.*", "monitoring"}

// Command is a client-to-server message: commands mirror the HTTP verbs
// (scan, connect, start_stream, stop_stream, subscribe, unsubscribe).
type Command struct {
	Command      string          `json:"command"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CorrelationID string         `json:"id,omitempty"`
}

// CommandHandler executes a dispatched command and returns data to echo
// back in the matching event response, or an error to report instead.
type CommandHandler func(ctx context.Context, clientID string, cmd Command) (any, error)

// outEnvelope is the wire shape for every message the broker pushes; the
// five variants from spec §4.5 all reuse it with different fields set.
type outEnvelope struct {
	Type       string `json:"type"`
	SensorType string `json:"sensor_type,omitempty"`
	EventType  string `json:"event_type,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Data       any    `json:"data"`
}

type client struct {
	id   string
	conn *websocket.Conn
	sub  *bus.Subscription
	send chan []byte

	writeMu sync.Mutex
}

// Broker registers WebSocket clients against the bus and serializes its
// envelopes to each, applying per-client subscription filters, heartbeats,
// and slow-consumer teardown.
type Broker struct {
	bus      *bus.Bus
	logger   *logrus.Logger
	upgrader websocket.Upgrader

	handlerMu sync.RWMutex
	handler   CommandHandler

	clients *hashmap.Map[string, *client]
}

// New constructs a broker bound to bus. Call SetCommandHandler before
// serving traffic so client commands have somewhere to go.
func New(b *bus.Bus, logger *logrus.Logger) *Broker {
	if logger == nil {
		logger = logrus.New()
	}
	return &Broker{
		bus:     b,
		logger:  logger,
		clients: hashmap.New[string, *client](),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// SetCommandHandler wires the dispatcher used for client-to-server commands.
func (br *Broker) SetCommandHandler(h CommandHandler) {
	br.handlerMu.Lock()
	defer br.handlerMu.Unlock()
	br.handler = h
}

// ClientCount reports the number of currently-registered clients, sampled
// by C8 Monitoring.
func (br *Broker) ClientCount() int {
	return br.clients.Len()
}

// ServeHTTP upgrades the request to a WebSocket and runs the client's
// read/write pumps until it disconnects.
func (br *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := br.upgrader.Upgrade(w, r, nil)
	if err != nil {
		br.logger.WithError(err).Warn("wsbroker: upgrade failed")
		return
	}

	id := uuid.NewString()
	sub := br.bus.Subscribe(id, DefaultTopics)

	c := &client{id: id, conn: conn, sub: sub, send: make(chan []byte, bus.DefaultSubscriberQueueCapacity)}

	br.clients.Set(id, c)

	br.logger.WithField("client_id", id).Info("wsbroker: client connected")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		br.writePump(c)
	}()
	go func() {
		defer wg.Done()
		br.readPump(c)
	}()
	wg.Wait()

	br.clients.Del(id)
	br.bus.Unsubscribe(id)
	conn.Close()
	br.logger.WithField("client_id", id).Info("wsbroker: client disconnected")
}

// writePump forwards bus envelopes and heartbeat pings to the socket until
// the subscription is torn down or the connection fails.
func (br *Broker) writePump(c *client) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case env, ok := <-c.sub.C():
			if !ok || c.sub.Closed() {
				return
			}
			if err := br.writeJSON(c, translate(env)); err != nil {
				return
			}

		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}

		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.TextMessage, data)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}

		if c.sub.Closed() {
			return
		}
	}
}

func (br *Broker) writeJSON(c *client, env outEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// readPump reads client commands until the connection is closed or goes
// silent for clientTimeout past the last pong.
func (br *Broker) readPump(c *client) {
	c.conn.SetReadDeadline(time.Now().Add(clientTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(clientTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			br.respondError(c, "", "malformed_command", err.Error())
			continue
		}

		switch cmd.Command {
		case "subscribe":
			br.adjustTopics(c, cmd, true)
			br.respondOK(c, cmd, map[string]any{"topics": DefaultTopics})
		case "unsubscribe":
			br.adjustTopics(c, cmd, false)
			br.respondOK(c, cmd, nil)
		default:
			br.dispatch(c, cmd)
		}
	}
}

func (br *Broker) dispatch(c *client, cmd Command) {
	br.handlerMu.RLock()
	handler := br.handler
	br.handlerMu.RUnlock()

	if handler == nil {
		br.respondError(c, cmd.CorrelationID, cmd.Command, "no command handler registered")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := handler(ctx, c.id, cmd)
	if err != nil {
		br.respondError(c, cmd.CorrelationID, cmd.Command, err.Error())
		return
	}
	br.respondOK(c, cmd, data)
}

// adjustTopics re-subscribes the client to the bus with an expanded or
// narrowed topic set. The payload is a JSON array of topic patterns.
func (br *Broker) adjustTopics(c *client, cmd Command, add bool) {
	var topics []string
	if err := json.Unmarshal(cmd.Payload, &topics); err != nil || len(topics) == 0 {
		return
	}

	existing := make(map[string]bool)
	for t := range c.sub.Topics() {
		existing[t] = true
	}
	for _, t := range topics {
		if add {
			existing[t] = true
		} else {
			delete(existing, t)
		}
	}

	next := make([]string, 0, len(existing))
	for t := range existing {
		next = append(next, t)
	}

	br.bus.Unsubscribe(c.id)
	c.sub = br.bus.Subscribe(c.id, next)
}

func (br *Broker) respondOK(c *client, cmd Command, data any) {
	br.respond(c, cmd.Command+".ok", cmd.CorrelationID, data, "")
}

func (br *Broker) respondError(c *client, correlationID, commandName, message string) {
	br.respond(c, commandName+".error", correlationID, nil, message)
}

func (br *Broker) respond(c *client, eventType, correlationID string, data any, errMsg string) {
	payload := map[string]any{}
	if data != nil {
		payload["result"] = data
	}
	if correlationID != "" {
		payload["correlation_id"] = correlationID
	}
	if errMsg != "" {
		payload["error"] = errMsg
	}

	env := outEnvelope{Type: "event", EventType: eventType, Timestamp: time.Now().UnixMilli(), Data: payload}
	data2, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- data2:
	default:
	}
}

// translate maps one bus envelope onto the client-facing wire schema
// spec §4.5 pins, keyed by topic prefix.
func translate(env bus.Envelope) outEnvelope {
	ts := env.TsUs / 1000
	topic := env.Topic

	switch {
	case len(topic) > 4 && topic[:4] == "raw.":
		kind := topic[4:]
		if kind == "bat" {
			return outEnvelope{Type: "sensor_data", SensorType: kind, Timestamp: ts, Data: env.Payload}
		}
		return outEnvelope{Type: "raw_data", SensorType: kind, Timestamp: ts, Data: env.Payload}

	case len(topic) > 10 && topic[:10] == "processed.":
		return outEnvelope{Type: "processed_data", SensorType: topic[10:], Timestamp: ts, Data: env.Payload}

	case len(topic) > 6 && topic[:6] == "event.":
		return outEnvelope{Type: "event", EventType: topic[6:], Timestamp: ts, Data: env.Payload}

	case topic == "monitoring":
		return outEnvelope{Type: "monitoring_metrics", Timestamp: ts, Data: env.Payload}

	default:
		return outEnvelope{Type: "event", EventType: topic, Timestamp: ts, Data: env.Payload}
	}
}
