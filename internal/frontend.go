package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/core"
	coredebug "github.com/sethcallen/harbinger/internal/core/debug"
	"github.com/sethcallen/harbinger/internal/wire"
)

// frontend implements the concurrent client connection logic.
//
// Data is read from any connected clients and passed to a backend instance,
// abstracting the lower level connection details away from the Backend.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger

	socket *net.TCPListener

	mu               sync.Mutex
	connectedClients map[string]*client.Client
}

// Start initializes the server backend and opens a TCP socket for the server.
// A blocking loop for accepting client connections is spun off in its own
// goroutine and added to the WaitGroup. Context cancellations will stop the server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	f.connectedClients = make(map[string]*client.Client)

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}
	f.socket = socket

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// createSocket opens a TCP socket to listen for client connections on the
// Address provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

func (f *frontend) numConnected() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.connectedClients)
}

// startBlockingLoop implements a connection handling loop that's purely
// responsible for accepting new connections and spinning off goroutines for
// the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), f.Address)

	// Closing the socket is the only way to break a blocked AcceptTCP, so a
	// context cancellation closes it and the accept loop exits on the error.
	go func() {
		<-ctx.Done()
		if err := socket.Close(); err != nil {
			f.Logger.Warnf("failed to close listener: %s", err)
		}
	}()

	connections := make(chan *net.TCPConn)
	go func() {
		defer close(connections)
		for {
			// Poll until we can accept more clients.
			for f.numConnected() >= f.Config.MaxConnections {
				time.Sleep(10 * time.Second)
			}

			connection, err := socket.AcceptTCP()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			select {
			case connections <- connection:
			case <-ctx.Done():
				_ = connection.Close()
				return
			}
		}
	}()

	clientWg := &sync.WaitGroup{}
	for connection := range connections {
		clientWg.Add(1)
		// Note: If there is eventually a need to implement worker pooling rather
		// than spawning new goroutines for each client, this is where it should
		// be implemented.
		go f.acceptClient(ctx, connection, clientWg)
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient takes a connection and attempts to initiate a "session" by
// setting up the Client and sending the welcome packet. If it succeeds, the
// goroutine moves into the packet processing loop.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c := client.NewClient(connection)
	if f.Config.Debugging.PacketLoggingEnabled {
		c.TraceFn = func(msg wire.Message) {
			coredebug.TraceMessage(f.Logger, "send", c.IPAddr(), msg)
		}
	}

	f.Logger.Infof("[%s] accepted connection from %s:%s", f.Backend.Identifier(), c.IPAddr(), c.Port())

	// Clients are keyed by the full remote address, so multiple connections
	// from one IP are fine; the session registry is what enforces one login
	// per account.
	f.mu.Lock()
	f.connectedClients[c.IPAddr()+":"+c.Port()] = c
	f.mu.Unlock()

	if err := f.Backend.Handshake(c); err != nil {
		f.Logger.Errorf("Handshake() failed for client %s: %s", c.IPAddr(), err)
	}

	f.processPackets(ctx, c)
}

// processPackets starts a blocking loop dedicated to reading data sent from
// a game client and only returns once the connection has closed.
func (f *frontend) processPackets(ctx context.Context, c *client.Client) {
	defer f.closeConnectionAndRecover(ctx, f.Backend.Identifier(), c)

	buffer := make([]byte, 2048)
	var err error

	for {
		select {
		case <-ctx.Done():
			// For now just allow the deferred function to close the connection.
			return
		default:
		}

		var size int
		buffer, size, err = f.readNextPacket(c, buffer)

		if err == io.EOF {
			break
		} else if err != nil {
			f.Logger.Warn(err.Error())
			break
		}

		if err = f.Backend.Handle(ctx, c, buffer[:size]); err != nil {
			f.Logger.Warn("error in client communication: " + err.Error())
			return
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics, tells the
// backend about the disconnect, and removes the client from the list
// regardless of the state of the connection.
func (f *frontend) closeConnectionAndRecover(ctx context.Context, serverName string, c *client.Client) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	f.Backend.Disconnect(ctx, c)

	if err := c.Close(); err != nil {
		f.Logger.Warnf("failed to close client connection: %s", err)
	}

	f.mu.Lock()
	delete(f.connectedClients, c.IPAddr()+":"+c.Port())
	f.mu.Unlock()

	f.Logger.Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}

// readNextPacket is a blocking call that only returns once the client has
// sent the next frame to be processed. It returns the (possibly regrown)
// buffer and the length of the frame within it.
func (f *frontend) readNextPacket(c *client.Client, buffer []byte) ([]byte, int, error) {
	if err := f.readDataFromClient(c, wire.HeaderSize, buffer); err != nil {
		return buffer, 0, err
	}

	header, err := wire.ParseHeader(buffer)
	if err != nil {
		return buffer, 0, err
	}
	packetSize := int(header.Size)
	if packetSize < wire.HeaderSize {
		return buffer, 0, fmt.Errorf("client %s declared frame size %d below the header length", c.IPAddr(), packetSize)
	}

	// Grow the receive buffer if the client sends a frame bigger than its
	// current capacity.
	if packetSize > cap(buffer) {
		newBuf := make([]byte, cap(buffer)+packetSize)
		copy(newBuf, buffer)
		buffer = newBuf
	}

	if err := f.readDataFromClient(c, packetSize-wire.HeaderSize, buffer[wire.HeaderSize:]); err != nil {
		return buffer, 0, err
	}

	return buffer, packetSize, nil
}

func (f *frontend) readDataFromClient(c *client.Client, n int, buffer []byte) error {
	received := 0

	for received < n {
		bytesRead, err := c.Read(buffer[received:n])
		received += bytesRead

		if bytesRead == 0 || err == io.EOF {
			return io.EOF
		} else if err != nil {
			return errors.New("socket error (" + c.IPAddr() + ") " + err.Error())
		}
	}

	return nil
}
