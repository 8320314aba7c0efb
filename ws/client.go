// client.go
//
// Minimal Coinbase websocket feed client. Dials, subscribes to the ticker
// channel, and hands every raw frame to the caller's sink. Deliberately no
// reconnect or backoff: connection loss ends Run with the error and the
// caller owns the policy.

package ws

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

// DefaultFeedURL is the production Coinbase market-data endpoint.
const DefaultFeedURL = "wss://ws-feed.exchange.coinbase.com"

const dialTimeout = 10 * time.Second

// subscribeMsg is the ticker-channel subscription envelope.
type subscribeMsg struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// Client is a single-connection feed subscriber. Run delivers frames on the
// connection's read goroutine; Close may be called from any goroutine and is
// idempotent.
type Client struct {
	url      string
	products []string
	conn     *websocket.Conn
	closed   atomic.Bool
	log      *zap.Logger
}

// NewClient prepares a client for url (empty means DefaultFeedURL) and the
// given product ids. Nothing touches the network until Connect.
func NewClient(url string, products []string, log *zap.Logger) *Client {
	if url == "" {
		url = DefaultFeedURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{url: url, products: products, log: log}
}

// Connect dials the feed and sends the ticker subscription.
func (c *Client) Connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn

	payload, err := sonnet.Marshal(subscribeMsg{
		Type:       "subscribe",
		ProductIDs: c.products,
		Channels:   []string{"ticker"},
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("encode subscription: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return fmt.Errorf("send subscription: %w", err)
	}
	c.log.Info("feed connected",
		zap.String("url", c.url),
		zap.Strings("products", c.products))
	return nil
}

// Run reads frames until the connection dies or Close is called, passing
// each raw payload to sink. Returns nil on deliberate close, the transport
// error otherwise. Call after Connect, from one goroutine.
func (c *Client) Run(sink func([]byte)) error {
	if c.conn == nil {
		return fmt.Errorf("ws: Run before Connect")
	}
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return nil
			}
			return fmt.Errorf("feed read: %w", err)
		}
		sink(msg)
	}
}

// Close tears the connection down. Safe to call twice and before Connect.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if c.conn == nil {
		return
	}
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = c.conn.Close()
}
