package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"voiceassist/core"
	"voiceassist/metrics"
	"voiceassist/protocol"

	"github.com/gorilla/websocket"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultSendBufferSize    = 256
	writeTimeout             = 10 * time.Second
)

var capabilities = []string{"sessions", "audio_submission", "events"}

// ClientConfig configures the control plane WebSocket client.
type ClientConfig struct {
	ConnectURL        string
	AgentID           string
	Version           string
	Metadata          map[string]string
	HeartbeatInterval time.Duration
	Logger            *core.Logger

	// ActiveSessions reports the session count for heartbeats. Optional.
	ActiveSessions func() int
}

// Client is the agent end of the UI link. It dials out to the UI server,
// streams logs, status and session events up, and hands session commands
// coming down to the On* callbacks.
type Client struct {
	config ClientConfig
	logger *core.Logger

	// Callbacks run on the read loop; long work belongs in a goroutine.
	OnStartSession    func(p protocol.StartSessionPayload)
	OnAudioSubmission func(p protocol.AudioSubmissionPayload)
	OnEndSession      func(sessionID string)
	OnShutdown        func(reason string)

	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	outbox    chan outboundFrame
	done      chan struct{}
	closeOnce sync.Once
	doneOnce  sync.Once
}

// NewClient returns an unconnected client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = defaultHeartbeatInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = core.GetLogger()
	}
	return &Client{
		config: cfg,
		logger: cfg.Logger.With(map[string]interface{}{"component": "controlplane"}),
		outbox: make(chan outboundFrame, defaultSendBufferSize),
		done:   make(chan struct{}),
	}
}

// Connect dials the UI server, registers the agent and starts the loops.
// Cancelling ctx closes the connection.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("connecting to control plane", "url", c.config.ConnectURL)

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.config.ConnectURL, nil)
	if err != nil {
		c.cancel()
		return fmt.Errorf("controlplane: dial %q: %w", c.config.ConnectURL, err)
	}
	c.conn = conn
	context.AfterFunc(c.ctx, func() { conn.Close() })

	frame, err := protocol.Encode(protocol.MsgRegister, protocol.RegisterPayload{
		AgentID:      c.config.AgentID,
		Version:      c.config.Version,
		Capabilities: capabilities,
		Metadata:     c.config.Metadata,
		Timestamp:    time.Now().UTC(),
	})
	if err == nil {
		err = c.writeFrame(protocol.MsgRegister, frame)
	}
	if err != nil {
		c.cancel()
		return fmt.Errorf("controlplane: register: %w", err)
	}
	c.logger.Info("registered with control plane", "agent_id", c.config.AgentID)

	go c.readLoop()
	go c.writeLoop()
	go c.heartbeatLoop()
	return nil
}

// SendLog forwards one session log line.
func (c *Client) SendLog(sessionID string, entry protocol.LogEntry) {
	c.enqueue(protocol.MsgLog, protocol.LogPayload{AgentID: c.config.AgentID, SessionID: sessionID, Entry: entry})
}

// SendLogEnd marks the end of a session's log stream.
func (c *Client) SendLogEnd(sessionID string) {
	c.enqueue(protocol.MsgLogEnd, protocol.LogEndPayload{AgentID: c.config.AgentID, SessionID: sessionID})
}

// SendStatus reports the agent status and its sessions.
func (c *Client) SendStatus(status string, sessions []protocol.SessionInfo) {
	c.enqueue(protocol.MsgStatus, protocol.StatusPayload{AgentID: c.config.AgentID, Status: status, Sessions: sessions})
}

// SendEvent forwards a session event such as a notice or transcript.
func (c *Client) SendEvent(sessionID, eventID, uid string, data json.RawMessage) {
	c.enqueue(protocol.MsgEvent, protocol.EventPayload{
		AgentID:   c.config.AgentID,
		SessionID: sessionID,
		EventID:   eventID,
		Uid:       uid,
		Data:      data,
	})
}

// SendSessionStarted answers a start_session request.
func (c *Client) SendSessionStarted(p protocol.SessionStartedPayload) {
	c.enqueue(protocol.MsgSessionStarted, p)
}

// SendAck acknowledges a request; a non-nil err marks it failed.
func (c *Client) SendAck(acked protocol.MessageType, sessionID string, err error) {
	p := protocol.AckPayload{AckedType: acked, SessionID: sessionID, OK: err == nil}
	if err != nil {
		p.Error = err.Error()
	}
	c.enqueue(protocol.MsgAck, p)
}

// Wait blocks until the read loop stops.
func (c *Client) Wait() error {
	<-c.done
	return nil
}

// Close drops the connection. It is safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) writeFrame(msgType protocol.MessageType, frame []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return err
	}
	metrics.ControlFrames.WithLabelValues("out", string(msgType)).Inc()
	return nil
}

type outboundFrame struct {
	msgType protocol.MessageType
	data    []byte
}

// enqueue queues a frame for the write loop. When the outbox is full the
// oldest frame is dropped to make room.
func (c *Client) enqueue(msgType protocol.MessageType, payload interface{}) {
	data, err := protocol.Encode(msgType, payload)
	if err != nil {
		c.logger.Warn("dropping unencodable message", "type", string(msgType), "error", err)
		return
	}
	frame := outboundFrame{msgType: msgType, data: data}
	for attempt := 0; attempt < 2; attempt++ {
		select {
		case c.outbox <- frame:
			return
		default:
		}
		select {
		case <-c.outbox:
			metrics.ControlFramesDropped.Inc()
		default:
		}
	}
	metrics.ControlFramesDropped.Inc()
}

func (c *Client) writeLoop() {
	for {
		select {
		case frame := <-c.outbox:
			if err := c.writeFrame(frame.msgType, frame.data); err != nil {
				c.logger.Warn("write to control plane failed", "error", err)
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.enqueue(protocol.MsgHeartbeat, c.heartbeat())
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) heartbeat() protocol.HeartbeatPayload {
	hb := protocol.HeartbeatPayload{AgentID: c.config.AgentID, Timestamp: time.Now().UTC(), Status: "idle"}
	if c.config.ActiveSessions != nil {
		hb.ActiveSessions = c.config.ActiveSessions()
	}
	if hb.ActiveSessions > 0 {
		hb.Status = "running"
	}
	return hb
}

// route handles one inbound command. It returns true when the read loop
// should stop.
type route func(env protocol.Envelope) bool

// decoded adapts a typed handler into a route. Frames whose payload does
// not decode are logged and skipped.
func decoded[T any](c *Client, handle func(T)) route {
	return func(env protocol.Envelope) bool {
		p, err := protocol.DecodePayload[T](env)
		if err != nil {
			c.logger.Warn("invalid control plane payload", "type", string(env.Type), "error", err)
			return false
		}
		handle(p)
		return false
	}
}

func (c *Client) routes() map[protocol.MessageType]route {
	return map[protocol.MessageType]route{
		protocol.MsgStartSession: decoded(c, func(p protocol.StartSessionPayload) {
			if c.OnStartSession != nil {
				c.OnStartSession(p)
			}
		}),
		protocol.MsgAudioSubmission: decoded(c, func(p protocol.AudioSubmissionPayload) {
			if c.OnAudioSubmission != nil {
				c.OnAudioSubmission(p)
			}
		}),
		protocol.MsgEndSession: decoded(c, func(p protocol.EndSessionPayload) {
			if c.OnEndSession != nil {
				c.OnEndSession(p.SessionID)
			}
		}),
		protocol.MsgShutdown: c.shutdown,
	}
}

// shutdown accepts a missing payload; the UI may send a bare shutdown.
func (c *Client) shutdown(env protocol.Envelope) bool {
	p, _ := protocol.DecodePayload[protocol.ShutdownPayload](env)
	reason := p.Reason
	if reason == "" {
		reason = "shutdown requested by control plane"
	}
	c.logger.Info("shutdown requested", "reason", reason)
	if c.OnShutdown != nil {
		c.OnShutdown(reason)
	}
	return true
}

func (c *Client) readLoop() {
	defer func() {
		c.doneOnce.Do(func() { close(c.done) })
		c.cancel()
	}()

	routes := c.routes()
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("control plane connection lost", "error", err)
			}
			return
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			c.logger.Warn("invalid message from control plane", "error", err)
			continue
		}
		metrics.ControlFrames.WithLabelValues("in", string(env.Type)).Inc()

		r, ok := routes[env.Type]
		if !ok {
			c.logger.Warn("unknown message type from control plane", "type", string(env.Type))
			continue
		}
		if r(env) {
			return
		}
	}
}
