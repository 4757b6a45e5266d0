// Package stream owns the long-lived event stream connection for one build
// session: debounced connect, the connect/close race, and tolerant parsing
// of inbound messages. Reconnection policy lives with the caller, not here.
package stream

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pkt.systems/forgeview/core"
	"pkt.systems/forgeview/schema"
	"pkt.systems/pslog"
)

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
	stateClosed
)

// Config configures stream connections for one project.
type Config struct {
	BaseURL    string
	Project    schema.ProjectID
	Debounce   time.Duration
	HTTPClient *http.Client
	Logger     pslog.Logger
}

// NewFactory returns a connection factory producing SSE connections against
// the builder backend.
func NewFactory(cfg Config) core.ConnectionFactory {
	if cfg.Debounce <= 0 {
		cfg.Debounce = schema.DefaultOpenDebounce
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = pslog.Ctx(context.Background())
	}
	return func(handler core.ConnectionHandler) core.Connection {
		return &Conn{cfg: cfg, handler: handler}
	}
}

// Conn is one long-lived SSE connection. At most one underlying connection
// attempt is alive per session at any instant.
type Conn struct {
	mu             sync.Mutex
	cfg            Config
	handler        core.ConnectionHandler
	state          connState
	session        schema.SessionID
	debounceTimer  *time.Timer
	cancel         context.CancelFunc
	closeRequested bool
}

// Open schedules connection establishment after a short debounce window so
// rapid successive calls collapse into a single attempt. A call while the
// connection is CONNECTING or OPEN for the same session is a no-op.
func (c *Conn) Open(sessionID schema.SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateConnecting, stateOpen:
		if c.session == sessionID {
			return
		}
		// A different session on the same connection object is a caller
		// bug; refuse rather than race two sockets.
		c.cfg.Logger.Warn("stream open ignored, connection already owned", "owner", c.session, "requested", sessionID)
		return
	case stateClosed:
		return
	}
	c.session = sessionID
	c.state = stateConnecting
	c.debounceTimer = time.AfterFunc(c.cfg.Debounce, c.dial)
}

// Close tears the connection down. When still CONNECTING the close is
// deferred until the dial settles, then applied immediately.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case stateIdle:
		c.state = stateClosed
	case stateConnecting:
		c.closeRequested = true
		if c.debounceTimer != nil && c.debounceTimer.Stop() {
			// Never dialed; nothing to unwind.
			c.debounceTimer = nil
			c.state = stateClosed
		}
	case stateOpen:
		c.closeRequested = true
		if c.cancel != nil {
			c.cancel()
		}
	case stateClosed:
	}
}

func (c *Conn) dial() {
	c.mu.Lock()
	if c.state != stateConnecting || c.closeRequested {
		c.state = stateClosed
		c.mu.Unlock()
		return
	}
	c.debounceTimer = nil
	session := c.session
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.mu.Unlock()

	log := c.cfg.Logger.With("project", c.cfg.Project).With("session", session)
	endpoint := fmt.Sprintf("%s/api/projects/%s/stream?session=%s",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), url.PathEscape(string(c.cfg.Project)), url.QueryEscape(string(session)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.settle(log, err)
		return
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		c.settle(log, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		c.settle(log, fmt.Errorf("stream returned status %d", resp.StatusCode))
		return
	}

	c.mu.Lock()
	if c.closeRequested {
		// Close arrived while the handshake was in flight; apply it now
		// that the connection finished establishing.
		c.state = stateClosed
		c.mu.Unlock()
		cancel()
		log.Debug("stream closed during connect")
		return
	}
	c.state = stateOpen
	c.mu.Unlock()
	log.Info("stream open", "url", endpoint)

	err = c.readLoop(log, resp)
	c.settle(log, err)
}

// readLoop consumes SSE frames until the stream ends. Parse failures are
// logged and the frame dropped; they never reach the consumer.
func (c *Conn) readLoop(log pslog.Logger, resp *http.Response) error {
	scanner := bufio.NewScanner(resp.Body)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case line == "":
			if data.Len() == 0 {
				continue
			}
			payload := data.String()
			data.Reset()
			event, ok := schema.DecodeBuildEvent([]byte(payload))
			if !ok {
				preview := payload
				if len(preview) > 200 {
					preview = preview[:200]
				}
				log.Warn("stream message dropped", "preview", preview, "truncated", len(preview) < len(payload))
				continue
			}
			c.handler.HandleEvent(event)
		default:
			// Comments and event/id fields are not used by this protocol.
		}
	}
	return scanner.Err()
}

// settle finalizes the connection and reports a transport fault to the
// consumer unless the close was deliberate.
func (c *Conn) settle(log pslog.Logger, err error) {
	c.mu.Lock()
	deliberate := c.closeRequested
	c.state = stateClosed
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	if deliberate {
		log.Debug("stream closed")
		return
	}
	if err != nil {
		log.Warn("stream lost", "err", err)
	} else {
		log.Info("stream ended")
	}
	c.handler.HandleDisconnect(err)
}
