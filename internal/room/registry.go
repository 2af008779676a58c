// The room package owns the set of active game rooms: bounded-capacity
// member lists with exactly one host, created and torn down entirely from
// client requests.
package room

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/wire"
)

var (
	ErrNoSuchRoom    = errors.New("room no longer exists")
	ErrAlreadyInRoom = errors.New("player is already in a room")
	ErrRoomFull      = errors.New("room is full or has already started")
	ErrNotInRoom     = errors.New("player is not in a room")
	ErrNotHost       = errors.New("player is not the room host")
)

// room state is only ever touched under the registry mutex. The player and
// connection slices are index-aligned at all times.
type room struct {
	id       int
	name     string
	capacity int
	visible  bool
	started  bool
	players  []wire.Player
	clients  []*client.Client
}

// Snapshot is a copy of a room's state safe to use outside the registry lock.
type Snapshot struct {
	ID       int
	Name     string
	Capacity int
	Started  bool
	Visible  bool
	Players  []wire.Player
}

// Departure describes the outcome of removing a member from their room.
type Departure struct {
	RoomID  int
	Deleted bool
	// NewHost is the username that host status migrated to, or "" if the
	// leaver was not the host (or the room was deleted).
	NewHost string
	// Peers are the remaining members to be notified.
	Peers []*client.Client
}

// Registry tracks every active room and which room each player is in.
type Registry struct {
	mu       sync.Mutex
	capacity int
	logger   *logrus.Logger
	rooms    map[int]*room
	memberOf map[string]int
}

func NewRegistry(capacity int, logger *logrus.Logger) *Registry {
	return &Registry{
		capacity: capacity,
		logger:   logger,
		rooms:    make(map[int]*room),
		memberOf: make(map[string]int),
	}
}

// allocateID returns the smallest non-negative identifier not assigned to a
// live room. Identifiers are reused as soon as a room is deleted.
func (r *Registry) allocateID() int {
	for id := 0; ; id++ {
		if _, taken := r.rooms[id]; !taken {
			return id
		}
	}
}

// Create opens a new room with username as its sole member and host. An
// empty name defaults to "<username>'s Lobby".
func (r *Registry) Create(username string, c *client.Client, name string, visible bool) (Snapshot, error) {
	if name == "" {
		name = fmt.Sprintf("%s's Lobby", username)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, inRoom := r.memberOf[username]; inRoom {
		return Snapshot{}, ErrAlreadyInRoom
	}

	rm := &room{
		id:       r.allocateID(),
		name:     name,
		capacity: r.capacity,
		visible:  visible,
		players:  []wire.Player{{Username: username, IsHost: true}},
		clients:  []*client.Client{c},
	}
	r.rooms[rm.id] = rm
	r.memberOf[username] = rm.id

	r.logger.Infof("%q created room %d (%q)", username, rm.id, rm.name)
	return rm.snapshot(), nil
}

// Join adds username to the room with the given id, returning the room
// state after the join and the peers to notify. Failures are reported in
// priority order: unknown room, caller already in a room, room full or
// already started.
func (r *Registry) Join(username string, c *client.Client, id int) (Snapshot, []*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[id]
	if !ok {
		return Snapshot{}, nil, ErrNoSuchRoom
	}
	if _, inRoom := r.memberOf[username]; inRoom {
		return Snapshot{}, nil, ErrAlreadyInRoom
	}
	if len(rm.players) >= rm.capacity || rm.started {
		return Snapshot{}, nil, ErrRoomFull
	}

	peers := make([]*client.Client, len(rm.clients))
	copy(peers, rm.clients)

	rm.players = append(rm.players, wire.Player{Username: username})
	rm.clients = append(rm.clients, c)
	r.memberOf[username] = id

	r.logger.Infof("%q joined room %d (%d/%d)", username, id, len(rm.players), rm.capacity)
	return rm.snapshot(), peers, nil
}

// Leave removes username from their room, if any. An empty room is deleted
// immediately; otherwise, if the leaver was the host, host status transfers
// to the first remaining member in insertion order.
func (r *Registry) Leave(username string) (Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, inRoom := r.memberOf[username]
	if !inRoom {
		return Departure{}, false
	}
	rm := r.rooms[id]
	delete(r.memberOf, username)

	idx := -1
	for i := range rm.players {
		if rm.players[i].Username == username {
			idx = i
			break
		}
	}
	wasHost := rm.players[idx].IsHost
	rm.players = append(rm.players[:idx], rm.players[idx+1:]...)
	rm.clients = append(rm.clients[:idx], rm.clients[idx+1:]...)

	dep := Departure{RoomID: id}
	if len(rm.players) == 0 {
		delete(r.rooms, id)
		dep.Deleted = true
		r.logger.Infof("%q left room %d, room deleted", username, id)
		return dep, true
	}

	if wasHost {
		rm.players[0].IsHost = true
		dep.NewHost = rm.players[0].Username
	}
	dep.Peers = make([]*client.Client, len(rm.clients))
	copy(dep.Peers, rm.clients)

	r.logger.Infof("%q left room %d (%d remaining)", username, id, len(rm.players))
	return dep, true
}

// OpenRooms returns listings for every visible room that has not started,
// ordered by id.
func (r *Registry) OpenRooms() []wire.RoomListing {
	r.mu.Lock()
	defer r.mu.Unlock()

	var listings []wire.RoomListing
	for _, rm := range r.rooms {
		if !rm.visible || rm.started {
			continue
		}
		listings = append(listings, wire.RoomListing{
			ID:       uint16(rm.id),
			Name:     rm.name,
			Capacity: byte(rm.capacity),
			Count:    byte(len(rm.players)),
		})
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].ID < listings[j].ID })
	return listings
}

// SetColor updates username's player color and returns every member of
// their room (caller included) for the broadcast.
func (r *Registry) SetColor(username string, color byte) ([]*client.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, inRoom := r.memberOf[username]
	if !inRoom {
		return nil, false
	}
	rm := r.rooms[id]
	for i := range rm.players {
		if rm.players[i].Username == username {
			rm.players[i].Color = color
			break
		}
	}

	members := make([]*client.Client, len(rm.clients))
	copy(members, rm.clients)
	return members, true
}

// Start marks username's room as started, refusing further joins. Only the
// host may start a room.
func (r *Registry) Start(username string) ([]*client.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, inRoom := r.memberOf[username]
	if !inRoom {
		return nil, ErrNotInRoom
	}
	rm := r.rooms[id]
	for i := range rm.players {
		if rm.players[i].Username == username {
			if !rm.players[i].IsHost {
				return nil, ErrNotHost
			}
			break
		}
	}
	rm.started = true

	members := make([]*client.Client, len(rm.clients))
	copy(members, rm.clients)

	r.logger.Infof("room %d started by %q", id, username)
	return members, nil
}

// MembersOf returns the connections of every member of username's room,
// caller included. Used by the chat handler for room messages.
func (r *Registry) MembersOf(username string) ([]*client.Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, inRoom := r.memberOf[username]
	if !inRoom {
		return nil, false
	}
	rm := r.rooms[id]

	members := make([]*client.Client, len(rm.clients))
	copy(members, rm.clients)
	return members, true
}

// RoomOf returns the id of the room username is currently in.
func (r *Registry) RoomOf(username string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.memberOf[username]
	return id, ok
}

func (rm *room) snapshot() Snapshot {
	players := make([]wire.Player, len(rm.players))
	copy(players, rm.players)
	return Snapshot{
		ID:       rm.id,
		Name:     rm.name,
		Capacity: rm.capacity,
		Started:  rm.started,
		Visible:  rm.visible,
		Players:  players,
	}
}
