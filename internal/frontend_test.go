package internal

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/core"
)

// nopBackend accepts every connection and ignores all traffic.
type nopBackend struct{}

func (b *nopBackend) Identifier() string { return "NOP" }

func (b *nopBackend) Init(ctx context.Context) error { return nil }

func (b *nopBackend) Handshake(c *client.Client) error { return nil }

func (b *nopBackend) Handle(ctx context.Context, c *client.Client, d []byte) error { return nil }

func (b *nopBackend) Disconnect(ctx context.Context, c *client.Client) {}

func TestFrontendShutdownClosesListener(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	config := &core.Config{MaxConnections: 10}
	f := &frontend{
		Address: "localhost:0",
		Backend: &nopBackend{},
		Config:  config,
		Logger:  logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	if err := f.Start(ctx, &wg); err != nil {
		t.Fatalf("Start() returned an unexpected error: %v", err)
	}
	addr := f.socket.Addr().String()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("error connecting to the frontend: %v", err)
	}
	_ = conn.Close()

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("frontend did not shut down after cancellation")
	}

	if conn, err := net.Dial("tcp", addr); err == nil {
		_ = conn.Close()
		t.Fatal("expected the listening socket to be closed after shutdown")
	}
}
