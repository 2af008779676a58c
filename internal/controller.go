package internal

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/sethcallen/harbinger/internal/chat"
	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/core"
	"github.com/sethcallen/harbinger/internal/core/auth"
	"github.com/sethcallen/harbinger/internal/core/data"
	"github.com/sethcallen/harbinger/internal/core/debug"
	"github.com/sethcallen/harbinger/internal/friend"
	"github.com/sethcallen/harbinger/internal/room"
	"github.com/sethcallen/harbinger/internal/session"
)

// Controller is the main entrypoint for the server. It's responsible for
// initializing any shared resources (such as the database and logging),
// wiring the handlers together, and launching everything.
type Controller struct {
	Config *core.Config

	logger *logrus.Logger
	wg     sync.WaitGroup

	db      *gorm.DB
	friends *friend.Service
	server  *frontend
}

func (c *Controller) Start(ctx context.Context) {
	var err error
	// Set up the logger, which will be used by all of the handlers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		logrus.Errorf("error initializing logger: %v", err)
		return
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.PprofEnabled {
		debug.StartPprofServer(c.logger, c.Config.Debugging.PprofPort)
	}

	keys, err := c.loadKeys()
	if err != nil {
		c.logger.Errorf("error setting up password keypair: %v", err)
		return
	}

	c.db, err = data.Initialize(c.Config.DatabaseURL(), c.Config.Debugging.DatabaseLoggingEnabled)
	if err != nil {
		c.logger.Errorf("error connecting to database: %v", err)
		return
	}
	c.logger.Infof("connected to database %s:%d", c.Config.Database.Host, c.Config.Database.Port)

	defer c.Shutdown(ctx)

	c.server = &frontend{
		Address: c.Config.ListenAddress(),
		Backend: c.declareBackend(keys),
		Config:  c.Config,
		Logger:  c.logger,
	}
	c.run(ctx)
}

func (c *Controller) loadKeys() (*auth.KeyPair, error) {
	if path := c.Config.Auth.PrivateKeyFile; path != "" {
		return auth.LoadKeyPair(path)
	}
	return auth.GenerateKeyPair()
}

// declareBackend builds the handler for each tag range and wires them
// together into the coordinator Backend.
func (c *Controller) declareBackend(keys *auth.KeyPair) Backend {
	sessions := session.NewRegistry()
	rooms := room.NewRegistry(c.Config.Rooms.Capacity, c.logger)
	groups := chat.NewRegistry(c.logger)

	c.friends = friend.NewService(data.NewFriends(c.db), sessions, c.logger)

	roomHandler := &room.Handler{Logger: c.logger, Registry: rooms}
	chatHandler := &chat.Handler{
		Logger:   c.logger,
		Registry: groups,
		Sessions: sessions,
		Rooms:    rooms,
	}
	friendHandler := &friend.Handler{Logger: c.logger, Service: c.friends}
	sessionHandler := &session.Handler{
		Config:   c.Config,
		Logger:   c.logger,
		Registry: sessions,
		Accounts: data.NewAccounts(c.db),
		Keys:     keys,
		Friends:  c.friends,
		Cleanup: func(cl *client.Client) {
			roomHandler.DropClient(cl)
			groups.RemoveAll(cl.Username())
		},
	}

	return &coordinator{
		logger:  c.logger,
		keys:    keys,
		session: sessionHandler,
		handlers: []Handler{
			sessionHandler,
			roomHandler,
			chatHandler,
			friendHandler,
		},
	}
}

func (c *Controller) run(ctx context.Context) {
	// Failure to initialize the server is considered terminal.
	if err := c.server.Start(ctx, &c.wg); err != nil {
		c.logger.Errorf("error starting %s server: %v", c.server.Backend.Identifier(), err)
		return
	}

	c.wg.Wait()
}

func (c *Controller) Shutdown(ctx context.Context) {
	// Stop the friend service after the frontend has stopped so that no
	// handler can submit work to a closed worker.
	c.wg.Wait()

	if c.friends != nil {
		c.friends.Stop()
	}
	if err := data.Shutdown(c.db); err != nil {
		c.logger.Errorf("error closing database connection: %v", err)
	}
}
