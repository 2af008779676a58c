package room

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/wire"
)

// Handler processes the room tag range.
type Handler struct {
	Logger   *logrus.Logger
	Registry *Registry
}

func (h *Handler) Identifier() string { return "ROOM" }

func (h *Handler) TagRange() (uint16, uint16) {
	return wire.RoomTagBase, wire.RoomTagBase + wire.TagRangeSize - 1
}

func (h *Handler) Handle(ctx context.Context, c *client.Client, tag uint16, payload []byte) error {
	if !c.LoggedIn() {
		h.Logger.Warnf("room packet %d from unauthenticated client %s", tag, c.IPAddr())
		if tag == wire.StartGameTag {
			return c.Send(&wire.StartFailed{Code: wire.RoomErrorNotLoggedIn})
		}
		return c.Send(&wire.JoinFailed{Code: wire.RoomErrorNotLoggedIn})
	}

	switch tag {
	case wire.CreateRoomTag:
		var pkt wire.CreateRoom
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed create room request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.JoinFailed{Code: wire.RoomErrorMalformed})
		}
		return h.handleCreate(c, &pkt)
	case wire.JoinRoomTag:
		var pkt wire.JoinRoom
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed join room request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.JoinFailed{Code: wire.RoomErrorMalformed})
		}
		return h.handleJoin(c, &pkt)
	case wire.LeaveRoomTag:
		// Idempotent: leaving while in no room is still a success.
		h.DropClient(c)
		return c.Send(&wire.LeaveSuccess{})
	case wire.GetOpenRoomsTag:
		return c.Send(&wire.OpenRooms{Rooms: h.Registry.OpenRooms()})
	case wire.ChangeColorTag:
		var pkt wire.ChangeColor
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed color change request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.JoinFailed{Code: wire.RoomErrorMalformed})
		}
		return h.handleChangeColor(c, &pkt)
	case wire.StartGameTag:
		return h.handleStart(c)
	default:
		h.Logger.Infof("received unknown room packet %d from %s", tag, c.IPAddr())
	}
	return nil
}

func (h *Handler) handleCreate(c *client.Client, pkt *wire.CreateRoom) error {
	snap, err := h.Registry.Create(c.Username(), c, pkt.Name, pkt.Visible)
	if err != nil {
		h.Logger.Warnf("create room failed for %q: %s", c.Username(), err)
		return c.Send(&wire.JoinFailed{Code: wire.RoomErrorUnavailable})
	}

	return c.Send(&wire.RoomCreated{
		ID:       uint16(snap.ID),
		Name:     snap.Name,
		Capacity: byte(snap.Capacity),
		Self:     snap.Players[0],
	})
}

func (h *Handler) handleJoin(c *client.Client, pkt *wire.JoinRoom) error {
	snap, peers, err := h.Registry.Join(c.Username(), c, int(pkt.ID))
	if err != nil {
		code := wire.RoomErrorUnavailable
		if errors.Is(err, ErrNoSuchRoom) {
			code = wire.RoomErrorNoLongerExists
		}
		return c.Send(&wire.JoinFailed{Code: code})
	}

	joined := snap.Players[len(snap.Players)-1]
	h.broadcast(peers, &wire.PlayerJoined{Player: joined})

	return c.Send(&wire.JoinSuccess{
		ID:       uint16(snap.ID),
		Name:     snap.Name,
		Capacity: byte(snap.Capacity),
		Members:  snap.Players,
	})
}

func (h *Handler) handleChangeColor(c *client.Client, pkt *wire.ChangeColor) error {
	members, ok := h.Registry.SetColor(c.Username(), pkt.Color)
	if !ok {
		return c.Send(&wire.JoinFailed{Code: wire.RoomErrorUnavailable})
	}
	h.broadcast(members, &wire.ColorChanged{Username: c.Username(), Color: pkt.Color})
	return nil
}

func (h *Handler) handleStart(c *client.Client) error {
	members, err := h.Registry.Start(c.Username())
	if err != nil {
		h.Logger.Warnf("start game failed for %q: %s", c.Username(), err)
		return c.Send(&wire.StartFailed{Code: wire.RoomErrorUnavailable})
	}
	h.broadcast(members, &wire.GameStarted{})
	return nil
}

// DropClient removes the client from its room, if any, and notifies the
// remaining members. Shared by the leave request and the logout/disconnect
// cleanup path.
func (h *Handler) DropClient(c *client.Client) {
	dep, left := h.Registry.Leave(c.Username())
	if !left || dep.Deleted {
		return
	}
	h.broadcast(dep.Peers, &wire.PlayerLeft{Username: c.Username(), NewHost: dep.NewHost})
}

func (h *Handler) broadcast(clients []*client.Client, msg wire.Message) {
	for _, peer := range clients {
		if err := peer.Send(msg); err != nil {
			h.Logger.Warnf("failed to notify %s: %s", peer.IPAddr(), err)
		}
	}
}
