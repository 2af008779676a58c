package internal

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/core/auth"
	"github.com/sethcallen/harbinger/internal/session"
	"github.com/sethcallen/harbinger/internal/wire"
)

// Handler processes the messages within one tag range of the protocol.
type Handler interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// TagRange returns the inclusive range of tags the Handler owns.
	TagRange() (uint16, uint16)

	// Handle processes a single decoded frame. Payload excludes the header.
	Handle(ctx context.Context, c *client.Client, tag uint16, payload []byte) error
}

// coordinator is the single Backend for the server. It performs the welcome
// handshake and dispatches each frame to the Handler owning its tag range.
type coordinator struct {
	logger   *logrus.Logger
	keys     *auth.KeyPair
	session  *session.Handler
	handlers []Handler
}

func (s *coordinator) Identifier() string { return "COORDINATOR" }

func (s *coordinator) Init(ctx context.Context) error { return nil }

// Handshake sends the client the RSA public key its password fields must be
// encrypted with.
func (s *coordinator) Handshake(c *client.Client) error {
	der, err := s.keys.PublicKeyDER()
	if err != nil {
		return fmt.Errorf("error encoding public key: %w", err)
	}
	return c.Send(&wire.Welcome{PublicKey: der})
}

func (s *coordinator) Handle(ctx context.Context, c *client.Client, data []byte) error {
	header, err := wire.ParseHeader(data)
	if err != nil {
		return fmt.Errorf("error parsing header from %s: %w", c.IPAddr(), err)
	}
	payload := data[wire.HeaderSize:]

	for _, handler := range s.handlers {
		low, high := handler.TagRange()
		if header.Tag >= low && header.Tag <= high {
			return handler.Handle(ctx, c, header.Tag, payload)
		}
	}

	// Unknown ranges are logged and skipped rather than killing the connection.
	s.logger.Infof("received packet with unhandled tag %d from %s", header.Tag, c.IPAddr())
	return nil
}

func (s *coordinator) Disconnect(ctx context.Context, c *client.Client) {
	s.session.Logout(c)
}
