package client

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/sethcallen/harbinger/internal/wire"
)

// Client represents one connected game client.
//
// Session state (the bound username) is guarded because handlers run on the
// connection's own goroutine while notifications from other components
// (friend notices, room broadcasts) arrive from their peers' goroutines.
type Client struct {
	conn   net.Conn
	ipAddr string
	port   string

	writeMu sync.Mutex

	mu       sync.RWMutex
	username string

	// TraceFn, when non-nil, is invoked with every message sent to this
	// client. Set by the frontend when packet logging is enabled.
	TraceFn func(msg wire.Message)
}

func NewClient(conn net.Conn) *Client {
	addr := conn.RemoteAddr().String()
	ip, port := addr, ""
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		ip, port = addr[:i], addr[i+1:]
	}

	return &Client{
		conn:   conn,
		ipAddr: ip,
		port:   port,
	}
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// Read consumes the available bytes directly from the client's connection.
func (c *Client) Read(b []byte) (int, error) {
	return c.conn.Read(b)
}

// Close the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetUsername binds (or, with an empty string, clears) the username under
// which this session is authenticated.
func (c *Client) SetUsername(username string) {
	c.mu.Lock()
	c.username = username
	c.mu.Unlock()
}

// Username returns the username bound at login, or "" for an
// unauthenticated session.
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

// LoggedIn reports whether the session has authenticated.
func (c *Client) LoggedIn() bool {
	return c.Username() != ""
}

// Send frames msg and writes it to the connection. Safe for concurrent use;
// a frame is never interleaved with another.
func (c *Client) Send(msg wire.Message) error {
	if c.TraceFn != nil {
		c.TraceFn(msg)
	}

	frame, err := wire.Frame(msg)
	if err != nil {
		return fmt.Errorf("failed to frame message for client %v: %w", c.IPAddr(), err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	sent := 0
	for sent < len(frame) {
		n, err := c.conn.Write(frame[sent:])
		if err != nil {
			return fmt.Errorf("failed to send to client %v: %s", c.IPAddr(), err.Error())
		}
		sent += n
	}
	return nil
}
