package internal

import (
	"context"

	"github.com/sethcallen/harbinger/internal/client"
)

// Backend is an interface for a server that handles the full set of client
// interactions over an accepted connection.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// Handshake performs any connection initialization necessary to begin
	// communicating with the client. This likely involves sending a "welcome" packet.
	Handshake(c *client.Client) error

	// Handle is the main entry point for processing client packets. It's responsible
	// for generally handling all packets from a client as well as sending any responses.
	Handle(ctx context.Context, c *client.Client, data []byte) error

	// Disconnect is called exactly once when the client's connection goes away,
	// whether by a clean close or an error. No replies can be sent to c.
	Disconnect(ctx context.Context, c *client.Client)
}
