// The friend package orchestrates the persistent friend graph: requests,
// acceptance, removal, and presence notices to online friends.
package friend

import (
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/core/data"
	"github.com/sethcallen/harbinger/internal/wire"
)

var (
	ErrNoSuchUser = errors.New("no account exists for the requested user")
	// ErrConflict covers every relationship-state conflict: a duplicate
	// request, accepting or declining a request that was never made, and
	// removing a friendship that does not exist.
	ErrConflict = errors.New("relationship state conflicts with the request")
)

// Store is the slice of the persistence layer the friend service needs.
// Implemented by data.Friends.
type Store interface {
	AccountExists(username string) (bool, error)
	Edge(a, b string) (*data.FriendEdge, error)
	CreateRequest(from, to string) error
	AcceptRequest(from, to string) error
	DeleteEdge(a, b string) error
	EdgesFor(username string) ([]data.FriendEdge, error)
}

// Presence resolves a username to its logged-in connection. Implemented by
// session.Registry.
type Presence interface {
	Lookup(username string) (*client.Client, bool)
}

// Service owns all reads and writes of the friend graph. Every storage
// operation runs on a single worker goroutine, so there is never more than
// one in-flight mutation for any pair of users and check-then-act sequences
// need no further locking.
type Service struct {
	logger   *logrus.Logger
	store    Store
	presence Presence

	// accounts caches positive account-existence lookups so that repeated
	// friend requests do not hammer the accounts table. Misses are never
	// cached: a user may register at any moment.
	accounts *cache.Cache

	tasks chan func()
}

const (
	accountCacheTTL     = 5 * time.Minute
	accountCacheCleanup = 10 * time.Minute
)

func NewService(store Store, presence Presence, logger *logrus.Logger) *Service {
	s := &Service{
		logger:   logger,
		store:    store,
		presence: presence,
		accounts: cache.New(accountCacheTTL, accountCacheCleanup),
		tasks:    make(chan func(), 64),
	}
	go s.worker()
	return s
}

func (s *Service) worker() {
	for fn := range s.tasks {
		fn()
	}
}

// Stop shuts down the storage worker. No Service method may be called
// afterward.
func (s *Service) Stop() {
	close(s.tasks)
}

// run executes fn on the storage worker and waits for it to complete.
func (s *Service) run(fn func()) {
	done := make(chan struct{})
	s.tasks <- func() {
		defer close(done)
		fn()
	}
	<-done
}

func (s *Service) accountExists(username string) (bool, error) {
	if _, found := s.accounts.Get(username); found {
		return true, nil
	}
	exists, err := s.store.AccountExists(username)
	if err != nil {
		return false, err
	}
	if exists {
		s.accounts.SetDefault(username, true)
	}
	return exists, nil
}

// SendRequest records a pending friend request from one user to another and
// notifies the receiver if they are online.
func (s *Service) SendRequest(from, to string) error {
	if from == to {
		return ErrConflict
	}

	var opErr error
	s.run(func() {
		exists, err := s.accountExists(to)
		if err != nil {
			opErr = err
			return
		}
		if !exists {
			opErr = ErrNoSuchUser
			return
		}

		edge, err := s.store.Edge(from, to)
		if err != nil {
			opErr = err
			return
		}
		if edge != nil {
			opErr = ErrConflict
			return
		}

		opErr = s.store.CreateRequest(from, to)
	})
	if opErr != nil {
		return opErr
	}

	s.notify(to, &wire.FriendRequestReceived{Sender: from})
	return nil
}

// Accept promotes the pending request from requester to username into a
// mutual friendship.
func (s *Service) Accept(username, requester string) error {
	var opErr error
	s.run(func() {
		edge, err := s.store.Edge(username, requester)
		if err != nil {
			opErr = err
			return
		}
		if edge == nil || edge.Accepted || edge.Requester != requester || edge.Receiver != username {
			opErr = ErrConflict
			return
		}

		opErr = s.store.AcceptRequest(requester, username)
	})
	if opErr != nil {
		return opErr
	}

	s.notify(requester, &wire.FriendRequestAccepted{Username: username})
	return nil
}

// Decline clears the pending request from requester to username without
// installing a friendship.
func (s *Service) Decline(username, requester string) error {
	var opErr error
	s.run(func() {
		edge, err := s.store.Edge(username, requester)
		if err != nil {
			opErr = err
			return
		}
		if edge == nil || edge.Accepted || edge.Requester != requester || edge.Receiver != username {
			opErr = ErrConflict
			return
		}

		opErr = s.store.DeleteEdge(username, requester)
	})
	if opErr != nil {
		return opErr
	}

	s.notify(requester, &wire.FriendRequestDeclined{Username: username})
	return nil
}

// Remove clears the friendship between the two users regardless of which
// side originally sent the request.
func (s *Service) Remove(username, other string) error {
	var opErr error
	s.run(func() {
		edge, err := s.store.Edge(username, other)
		if err != nil {
			opErr = err
			return
		}
		if edge == nil || !edge.Accepted {
			opErr = ErrConflict
			return
		}

		opErr = s.store.DeleteEdge(username, other)
	})
	if opErr != nil {
		return opErr
	}

	s.notify(other, &wire.FriendRemoved{Username: username})
	return nil
}

// Lists returns the four disjoint relationship lists for username. Fetching
// the lists has no side effects; presence notices are sent only at login
// and logout.
func (s *Service) Lists(username string) (*wire.FriendsList, error) {
	var (
		edges []data.FriendEdge
		opErr error
	)
	s.run(func() {
		edges, opErr = s.store.EdgesFor(username)
	})
	if opErr != nil {
		return nil, opErr
	}

	list := &wire.FriendsList{}
	for _, edge := range edges {
		other := edge.Requester
		if other == username {
			other = edge.Receiver
		}

		switch {
		case edge.Accepted:
			if _, online := s.presence.Lookup(other); online {
				list.Online = append(list.Online, other)
			} else {
				list.Offline = append(list.Offline, other)
			}
		case edge.Receiver == username:
			list.Incoming = append(list.Incoming, other)
		default:
			list.Outgoing = append(list.Outgoing, other)
		}
	}
	return list, nil
}

// NotifyLogin pushes a FriendOnline notice for username to every online friend.
func (s *Service) NotifyLogin(username string) {
	s.broadcastPresence(username, &wire.FriendOnline{Username: username})
}

// NotifyLogout pushes a FriendOffline notice for username to every online friend.
func (s *Service) NotifyLogout(username string) {
	s.broadcastPresence(username, &wire.FriendOffline{Username: username})
}

func (s *Service) broadcastPresence(username string, msg wire.Message) {
	var (
		edges []data.FriendEdge
		opErr error
	)
	s.run(func() {
		edges, opErr = s.store.EdgesFor(username)
	})
	if opErr != nil {
		s.logger.Errorf("error loading friends of %q for presence notice: %s", username, opErr)
		return
	}

	for _, edge := range edges {
		if !edge.Accepted {
			continue
		}
		other := edge.Requester
		if other == username {
			other = edge.Receiver
		}
		s.notify(other, msg)
	}
}

func (s *Service) notify(username string, msg wire.Message) {
	c, online := s.presence.Lookup(username)
	if !online {
		return
	}
	if err := c.Send(msg); err != nil {
		s.logger.Warnf("failed to notify %q: %s", username, err)
	}
}
