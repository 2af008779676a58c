package friend

import (
	"bytes"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/core/data"
	"github.com/sethcallen/harbinger/internal/wire"
)

// captureConn records every frame written to it so tests can inspect the
// notifications a user received.
type captureConn struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *captureConn) Read(b []byte) (int, error) { return 0, io.EOF }

func (c *captureConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(b)
}

func (c *captureConn) Close() error { return nil }

func (c *captureConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 15000}
}

func (c *captureConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 56001}
}

func (c *captureConn) SetDeadline(t time.Time) error      { return nil }
func (c *captureConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *captureConn) SetWriteDeadline(t time.Time) error { return nil }

// receivedTags decodes the tags of every frame written to conn since the
// last call.
func receivedTags(t *testing.T, conn *captureConn) []uint16 {
	t.Helper()
	conn.mu.Lock()
	defer conn.mu.Unlock()

	var tags []uint16
	raw := conn.buf.Bytes()
	for len(raw) > 0 {
		header, err := wire.ParseHeader(raw)
		if err != nil {
			t.Fatalf("error parsing received frame header: %v", err)
		}
		tags = append(tags, header.Tag)
		raw = raw[header.Size:]
	}
	conn.buf.Reset()
	return tags
}

// fakeStore is an in-memory Store with the same semantics as data.Friends.
type fakeStore struct {
	accounts map[string]bool
	edges    []*data.FriendEdge
	nextID   uint64
	err      error
}

func newFakeStore(usernames ...string) *fakeStore {
	accounts := make(map[string]bool)
	for _, username := range usernames {
		accounts[username] = true
	}
	return &fakeStore{accounts: accounts}
}

func (f *fakeStore) AccountExists(username string) (bool, error) {
	return f.accounts[username], f.err
}

func (f *fakeStore) Edge(a, b string) (*data.FriendEdge, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, edge := range f.edges {
		if (edge.Requester == a && edge.Receiver == b) || (edge.Requester == b && edge.Receiver == a) {
			return edge, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CreateRequest(from, to string) error {
	if f.err != nil {
		return f.err
	}
	f.nextID++
	f.edges = append(f.edges, &data.FriendEdge{ID: f.nextID, Requester: from, Receiver: to})
	return nil
}

func (f *fakeStore) AcceptRequest(from, to string) error {
	if f.err != nil {
		return f.err
	}
	for _, edge := range f.edges {
		if edge.Requester == from && edge.Receiver == to && !edge.Accepted {
			edge.Accepted = true
		}
	}
	return nil
}

func (f *fakeStore) DeleteEdge(a, b string) error {
	if f.err != nil {
		return f.err
	}
	kept := f.edges[:0]
	for _, edge := range f.edges {
		if (edge.Requester == a && edge.Receiver == b) || (edge.Requester == b && edge.Receiver == a) {
			continue
		}
		kept = append(kept, edge)
	}
	f.edges = kept
	return nil
}

func (f *fakeStore) EdgesFor(username string) ([]data.FriendEdge, error) {
	if f.err != nil {
		return nil, f.err
	}
	var edges []data.FriendEdge
	for _, edge := range f.edges {
		if edge.Requester == username || edge.Receiver == username {
			edges = append(edges, *edge)
		}
	}
	return edges, nil
}

type fakePresence struct {
	online map[string]*client.Client
}

func (f *fakePresence) Lookup(username string) (*client.Client, bool) {
	c, ok := f.online[username]
	return c, ok
}

func testService(t *testing.T, store *fakeStore, presence *fakePresence) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	service := NewService(store, presence, logger)
	t.Cleanup(service.Stop)
	return service
}

// bringOnline registers a capturing connection for username.
func bringOnline(presence *fakePresence, username string) *captureConn {
	conn := &captureConn{}
	presence.online[username] = client.NewClient(conn)
	return conn
}

func TestSendRequest(t *testing.T) {
	store := newFakeStore("alice", "bob")
	presence := &fakePresence{online: make(map[string]*client.Client)}
	bobConn := bringOnline(presence, "bob")
	service := testService(t, store, presence)

	if err := service.SendRequest("alice", "bob"); err != nil {
		t.Fatalf("SendRequest() returned an unexpected error: %v", err)
	}

	edge, _ := store.Edge("alice", "bob")
	if edge == nil || edge.Accepted {
		t.Fatalf("expected a pending edge, got %+v", edge)
	}

	tags := receivedTags(t, bobConn)
	if len(tags) != 1 || tags[0] != wire.FriendRequestReceivedTag {
		t.Errorf("expected bob to receive FriendRequestReceived, got %v", tags)
	}
}

func TestSendRequestFailureModes(t *testing.T) {
	tests := []struct {
		name    string
		seed    func(store *fakeStore)
		from    string
		to      string
		wantErr error
	}{
		{
			name:    "unknown receiver",
			seed:    func(store *fakeStore) {},
			from:    "alice",
			to:      "ghost",
			wantErr: ErrNoSuchUser,
		},
		{
			name: "duplicate request",
			seed: func(store *fakeStore) {
				store.edges = append(store.edges, &data.FriendEdge{Requester: "alice", Receiver: "bob"})
			},
			from:    "alice",
			to:      "bob",
			wantErr: ErrConflict,
		},
		{
			name: "request crossing an incoming request",
			seed: func(store *fakeStore) {
				store.edges = append(store.edges, &data.FriendEdge{Requester: "bob", Receiver: "alice"})
			},
			from:    "alice",
			to:      "bob",
			wantErr: ErrConflict,
		},
		{
			name: "already friends",
			seed: func(store *fakeStore) {
				store.edges = append(store.edges, &data.FriendEdge{Requester: "alice", Receiver: "bob", Accepted: true})
			},
			from:    "alice",
			to:      "bob",
			wantErr: ErrConflict,
		},
		{
			name:    "request to self",
			seed:    func(store *fakeStore) {},
			from:    "alice",
			to:      "alice",
			wantErr: ErrConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("alice", "bob")
			tt.seed(store)
			service := testService(t, store, &fakePresence{online: make(map[string]*client.Client)})

			before := len(store.edges)
			if err := service.SendRequest(tt.from, tt.to); err != tt.wantErr {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if len(store.edges) != before {
				t.Error("expected no edge to be created")
			}
		})
	}
}

func TestAcceptPromotesRequest(t *testing.T) {
	store := newFakeStore("alice", "bob")
	store.edges = append(store.edges, &data.FriendEdge{Requester: "alice", Receiver: "bob"})
	presence := &fakePresence{online: make(map[string]*client.Client)}
	aliceConn := bringOnline(presence, "alice")
	service := testService(t, store, presence)

	if err := service.Accept("bob", "alice"); err != nil {
		t.Fatalf("Accept() returned an unexpected error: %v", err)
	}

	edge, _ := store.Edge("alice", "bob")
	if edge == nil || !edge.Accepted {
		t.Fatalf("expected an accepted edge, got %+v", edge)
	}

	tags := receivedTags(t, aliceConn)
	if len(tags) != 1 || tags[0] != wire.FriendRequestAcceptedTag {
		t.Errorf("expected alice to receive FriendRequestAccepted, got %v", tags)
	}
}

func TestAcceptRequiresMatchingPendingRequest(t *testing.T) {
	tests := []struct {
		name string
		seed func(store *fakeStore)
	}{
		{
			name: "no relationship",
			seed: func(store *fakeStore) {},
		},
		{
			name: "requester cannot accept their own request",
			seed: func(store *fakeStore) {
				store.edges = append(store.edges, &data.FriendEdge{Requester: "bob", Receiver: "alice"})
			},
		},
		{
			name: "already accepted",
			seed: func(store *fakeStore) {
				store.edges = append(store.edges, &data.FriendEdge{Requester: "alice", Receiver: "bob", Accepted: true})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("alice", "bob")
			tt.seed(store)
			service := testService(t, store, &fakePresence{online: make(map[string]*client.Client)})

			if err := service.Accept("bob", "alice"); err != ErrConflict {
				t.Errorf("expected ErrConflict, got %v", err)
			}
		})
	}
}

func TestDeclineClearsRequest(t *testing.T) {
	store := newFakeStore("alice", "bob")
	store.edges = append(store.edges, &data.FriendEdge{Requester: "alice", Receiver: "bob"})
	presence := &fakePresence{online: make(map[string]*client.Client)}
	aliceConn := bringOnline(presence, "alice")
	service := testService(t, store, presence)

	if err := service.Decline("bob", "alice"); err != nil {
		t.Fatalf("Decline() returned an unexpected error: %v", err)
	}

	if edge, _ := store.Edge("alice", "bob"); edge != nil {
		t.Fatalf("expected the edge to be removed, got %+v", edge)
	}
	tags := receivedTags(t, aliceConn)
	if len(tags) != 1 || tags[0] != wire.FriendRequestDeclinedTag {
		t.Errorf("expected alice to receive FriendRequestDeclined, got %v", tags)
	}
}

func TestRemoveFriend(t *testing.T) {
	store := newFakeStore("alice", "bob")
	store.edges = append(store.edges, &data.FriendEdge{Requester: "alice", Receiver: "bob", Accepted: true})
	presence := &fakePresence{online: make(map[string]*client.Client)}
	aliceConn := bringOnline(presence, "alice")
	service := testService(t, store, presence)

	// Either side can remove the friendship.
	if err := service.Remove("bob", "alice"); err != nil {
		t.Fatalf("Remove() returned an unexpected error: %v", err)
	}

	if edge, _ := store.Edge("alice", "bob"); edge != nil {
		t.Fatalf("expected the edge to be removed, got %+v", edge)
	}
	tags := receivedTags(t, aliceConn)
	if len(tags) != 1 || tags[0] != wire.FriendRemovedTag {
		t.Errorf("expected alice to receive FriendRemoved, got %v", tags)
	}

	// Removing again, or removing a mere pending request, is a conflict.
	if err := service.Remove("bob", "alice"); err != ErrConflict {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	store.edges = append(store.edges, &data.FriendEdge{Requester: "alice", Receiver: "bob"})
	if err := service.Remove("bob", "alice"); err != ErrConflict {
		t.Errorf("expected ErrConflict for a pending request, got %v", err)
	}
}

func TestLists(t *testing.T) {
	store := newFakeStore("alice", "bob", "carol", "dave", "erin")
	store.edges = []*data.FriendEdge{
		{Requester: "alice", Receiver: "bob", Accepted: true},
		{Requester: "carol", Receiver: "alice", Accepted: true},
		{Requester: "erin", Receiver: "alice"},
		{Requester: "alice", Receiver: "dave"},
	}
	presence := &fakePresence{online: make(map[string]*client.Client)}
	bobConn := bringOnline(presence, "bob")
	service := testService(t, store, presence)

	list, err := service.Lists("alice")
	if err != nil {
		t.Fatalf("Lists() returned an unexpected error: %v", err)
	}

	if len(list.Online) != 1 || list.Online[0] != "bob" {
		t.Errorf("expected online = [bob], got %v", list.Online)
	}
	if len(list.Offline) != 1 || list.Offline[0] != "carol" {
		t.Errorf("expected offline = [carol], got %v", list.Offline)
	}
	if len(list.Incoming) != 1 || list.Incoming[0] != "erin" {
		t.Errorf("expected incoming = [erin], got %v", list.Incoming)
	}
	if len(list.Outgoing) != 1 || list.Outgoing[0] != "dave" {
		t.Errorf("expected outgoing = [dave], got %v", list.Outgoing)
	}

	// Fetching the lists must not re-send presence notices to friends.
	if tags := receivedTags(t, bobConn); len(tags) != 0 {
		t.Errorf("expected no notifications from Lists(), got %v", tags)
	}
}

func TestPresenceNotices(t *testing.T) {
	store := newFakeStore("alice", "bob", "carol", "erin")
	store.edges = []*data.FriendEdge{
		{Requester: "alice", Receiver: "bob", Accepted: true},
		{Requester: "carol", Receiver: "alice", Accepted: true},
		{Requester: "erin", Receiver: "alice"},
	}
	presence := &fakePresence{online: make(map[string]*client.Client)}
	bobConn := bringOnline(presence, "bob")
	erinConn := bringOnline(presence, "erin")
	service := testService(t, store, presence)

	service.NotifyLogin("alice")
	if tags := receivedTags(t, bobConn); len(tags) != 1 || tags[0] != wire.FriendOnlineTag {
		t.Errorf("expected bob to receive FriendOnline, got %v", tags)
	}
	// A pending request is not a friendship yet.
	if tags := receivedTags(t, erinConn); len(tags) != 0 {
		t.Errorf("expected no notice for erin, got %v", tags)
	}

	service.NotifyLogout("alice")
	if tags := receivedTags(t, bobConn); len(tags) != 1 || tags[0] != wire.FriendOfflineTag {
		t.Errorf("expected bob to receive FriendOffline, got %v", tags)
	}
}

func TestAccountExistenceIsCached(t *testing.T) {
	store := newFakeStore("alice", "bob", "carol")
	service := testService(t, store, &fakePresence{online: make(map[string]*client.Client)})

	if err := service.SendRequest("alice", "bob"); err != nil {
		t.Fatalf("SendRequest() returned an unexpected error: %v", err)
	}

	// Account deletion takes up to the cache TTL to be observed.
	delete(store.accounts, "bob")
	if err := service.SendRequest("carol", "bob"); err != nil {
		t.Errorf("expected the cached existence check to pass, got %v", err)
	}
}
