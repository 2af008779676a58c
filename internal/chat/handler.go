package chat

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/wire"
)

// Presence resolves a username to its logged-in connection. Implemented by
// session.Registry.
type Presence interface {
	Lookup(username string) (*client.Client, bool)
}

// RoomLookup returns the members of the room a user is currently in.
// Implemented by room.Registry.
type RoomLookup interface {
	MembersOf(username string) ([]*client.Client, bool)
}

// Handler processes the chat tag range: group membership, group messages,
// private messages, and room messages.
type Handler struct {
	Logger   *logrus.Logger
	Registry *Registry
	Sessions Presence
	Rooms    RoomLookup
}

func (h *Handler) Identifier() string { return "CHAT" }

func (h *Handler) TagRange() (uint16, uint16) {
	return wire.ChatTagBase, wire.ChatTagBase + wire.TagRangeSize - 1
}

func (h *Handler) Handle(ctx context.Context, c *client.Client, tag uint16, payload []byte) error {
	if !c.LoggedIn() {
		h.Logger.Warnf("chat packet %d from unauthenticated client %s", tag, c.IPAddr())
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorNotLoggedIn})
	}

	switch tag {
	case wire.JoinGroupTag:
		var pkt wire.JoinGroup
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed join group request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.ChatFailed{Code: wire.ChatErrorMalformed})
		}
		return h.handleJoinGroup(c, &pkt)
	case wire.LeaveGroupTag:
		var pkt wire.LeaveGroup
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed leave group request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.ChatFailed{Code: wire.ChatErrorMalformed})
		}
		return h.handleLeaveGroup(c, &pkt)
	case wire.SendGroupMessageTag:
		var pkt wire.SendGroupMessage
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed group message from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.ChatFailed{Code: wire.ChatErrorMalformed})
		}
		return h.handleGroupMessage(c, &pkt)
	case wire.SendPrivateMessageTag:
		var pkt wire.SendPrivateMessage
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed private message from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.ChatFailed{Code: wire.ChatErrorMalformed})
		}
		return h.handlePrivateMessage(c, &pkt)
	case wire.SendRoomMessageTag:
		var pkt wire.SendRoomMessage
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed room message from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.ChatFailed{Code: wire.ChatErrorMalformed})
		}
		return h.handleRoomMessage(c, &pkt)
	case wire.ListGroupsTag:
		return c.Send(&wire.ActiveGroups{Names: h.Registry.ActiveGroups()})
	default:
		h.Logger.Infof("received unknown chat packet %d from %s", tag, c.IPAddr())
	}
	return nil
}

func (h *Handler) handleJoinGroup(c *client.Client, pkt *wire.JoinGroup) error {
	name, members, err := h.Registry.Join(c.Username(), c, pkt.Name)
	if err != nil {
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorAlreadyMember})
	}
	return c.Send(&wire.GroupJoined{Name: name, Members: members})
}

func (h *Handler) handleLeaveGroup(c *client.Client, pkt *wire.LeaveGroup) error {
	name, err := h.Registry.Leave(c.Username(), pkt.Name)
	if err != nil {
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorNotMember})
	}
	return c.Send(&wire.GroupLeft{Name: name})
}

func (h *Handler) handleGroupMessage(c *client.Client, pkt *wire.SendGroupMessage) error {
	name, recipients, err := h.Registry.Recipients(c.Username(), pkt.Group)
	if err != nil {
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorNotMember})
	}

	// The rebroadcast carries the group and sender on top of the client's
	// text, so a frame that arrived at the size limit may no longer fit.
	msg := &wire.GroupMessage{Group: name, Sender: c.Username(), Text: pkt.Text}
	if !wire.Fits(msg) {
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorMalformed})
	}
	for _, member := range recipients {
		if err := member.Send(msg); err != nil {
			h.Logger.Warnf("failed to deliver group message to %s: %s", member.IPAddr(), err)
		}
	}
	return nil
}

func (h *Handler) handlePrivateMessage(c *client.Client, pkt *wire.SendPrivateMessage) error {
	delivery := &wire.PrivateMessage{Sender: c.Username(), Text: pkt.Text}
	if !wire.Fits(delivery) {
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorMalformed})
	}

	receiver, online := h.Sessions.Lookup(pkt.Receiver)
	if !online {
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorReceiverOffline})
	}

	if err := receiver.Send(delivery); err != nil {
		h.Logger.Warnf("failed to deliver private message to %s: %s", receiver.IPAddr(), err)
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorReceiverOffline})
	}
	return c.Send(&wire.PrivateMessageReceipt{Receiver: pkt.Receiver, Text: pkt.Text})
}

func (h *Handler) handleRoomMessage(c *client.Client, pkt *wire.SendRoomMessage) error {
	members, inRoom := h.Rooms.MembersOf(c.Username())
	if !inRoom {
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorNotMember})
	}

	msg := &wire.RoomMessage{Sender: c.Username(), Text: pkt.Text}
	if !wire.Fits(msg) {
		return c.Send(&wire.ChatFailed{Code: wire.ChatErrorMalformed})
	}
	for _, member := range members {
		if err := member.Send(msg); err != nil {
			h.Logger.Warnf("failed to deliver room message to %s: %s", member.IPAddr(), err)
		}
	}
	return nil
}
