package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"Preda/internal/domain/models"
	drepo "Preda/internal/domain/repository"
	applogger "Preda/pkg/logger"

	"github.com/gorilla/websocket"
)

// Client is a SignalStream over a WebSocket feed. The feed sends frames of
// the form {"type":"signals","data":[{"domain":"BTC",...signal}]}.
type Client struct {
	apiKey         string
	url            string
	domains        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected atomic.Bool
	dropped   atomic.Int64
}

// New creates a SignalStream for the given domains.
func New(log *applogger.Logger, apiKey, wsURL string, domains []string, reconnectDelay, pingInterval time.Duration) drepo.SignalStream {
	if log == nil {
		log = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		url:            wsURL,
		domains:        domains,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log.With(applogger.String("component", "signal_stream")),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.url)
	if err != nil {
		return fmt.Errorf("stream url: %w", err)
	}
	if c.apiKey != "" {
		q := u.Query()
		q.Set("token", c.apiKey)
		u.RawQuery = q.Encode()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("stream connected", applogger.String("url", c.url))
	return nil
}

type subscribeFrame struct {
	Type   string `json:"type"`
	Domain string `json:"domain"`
}

// Subscribe asks the feed for every configured domain.
func (c *Client) Subscribe(context.Context) error {
	if !c.connected.Load() {
		return fmt.Errorf("stream not connected")
	}
	for _, d := range c.domains {
		if err := c.writeJSON(subscribeFrame{Type: "subscribe", Domain: d}); err != nil {
			return fmt.Errorf("subscribe %s: %w", d, err)
		}
		c.log.Debug("stream subscribed", applogger.String("domain", d))
	}
	return nil
}

type frame struct {
	Type string                  `json:"type"`
	Data []models.SignalEnvelope `json:"data"`
}

// Read streams signals until ctx ends or the connection fails. Signals are
// dropped when the consumer falls behind.
func (c *Client) Read(ctx context.Context) (<-chan *models.SignalEnvelope, <-chan error) {
	out := make(chan *models.SignalEnvelope, 1024)
	errs := make(chan error, 1)

	go c.pingLoop(ctx)

	go func() {
		defer close(out)
		defer close(errs)
		for {
			if ctx.Err() != nil {
				return
			}
			conn := c.current()
			if conn == nil {
				errs <- fmt.Errorf("stream conn nil")
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.connected.Store(false)
				if ctx.Err() == nil {
					errs <- fmt.Errorf("stream read: %w", err)
				}
				return
			}
			var f frame
			if err := json.Unmarshal(b, &f); err != nil || f.Type != "signals" {
				continue
			}
			for i := range f.Data {
				env := f.Data[i]
				select {
				case out <- &env:
				case <-ctx.Done():
					return
				default:
					c.dropped.Add(1)
				}
			}
		}
	}()

	return out, errs
}

func (c *Client) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.connected.Load() {
				return
			}
			c.writeMu.Lock()
			if conn := c.current(); conn != nil {
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			c.writeMu.Unlock()
		}
	}
}

// Reconnect closes, waits the reconnect delay and subscribes again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-time.After(c.reconnectDelay):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) IsConnected() bool { return c.connected.Load() }

// Dropped reports signals discarded on backpressure.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn := c.current()
	if conn == nil {
		return fmt.Errorf("stream conn nil")
	}
	return conn.WriteJSON(v)
}
