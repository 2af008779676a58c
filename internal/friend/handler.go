package friend

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/wire"
)

// Handler processes the friend tag range.
type Handler struct {
	Logger  *logrus.Logger
	Service *Service
}

func (h *Handler) Identifier() string { return "FRIEND" }

func (h *Handler) TagRange() (uint16, uint16) {
	return wire.FriendTagBase, wire.FriendTagBase + wire.TagRangeSize - 1
}

func (h *Handler) Handle(ctx context.Context, c *client.Client, tag uint16, payload []byte) error {
	if !c.LoggedIn() {
		h.Logger.Warnf("friend packet %d from unauthenticated client %s", tag, c.IPAddr())
		return c.Send(&wire.FriendFailed{Code: wire.FriendErrorNotLoggedIn})
	}

	switch tag {
	case wire.SendFriendRequestTag:
		var pkt wire.SendFriendRequest
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed friend request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.FriendFailed{Code: wire.FriendErrorMalformed})
		}
		if err := h.Service.SendRequest(c.Username(), pkt.Receiver); err != nil {
			return h.sendFailure(c, err)
		}
		return c.Send(&wire.FriendRequestSent{Receiver: pkt.Receiver})

	case wire.AcceptFriendRequestTag:
		var pkt wire.AcceptFriendRequest
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed accept request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.FriendFailed{Code: wire.FriendErrorMalformed})
		}
		if err := h.Service.Accept(c.Username(), pkt.Sender); err != nil {
			return h.sendFailure(c, err)
		}
		return c.Send(&wire.FriendRequestAccepted{Username: pkt.Sender})

	case wire.DeclineFriendRequestTag:
		var pkt wire.DeclineFriendRequest
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed decline request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.FriendFailed{Code: wire.FriendErrorMalformed})
		}
		if err := h.Service.Decline(c.Username(), pkt.Sender); err != nil {
			return h.sendFailure(c, err)
		}
		return c.Send(&wire.FriendRequestDeclined{Username: pkt.Sender})

	case wire.RemoveFriendTag:
		var pkt wire.RemoveFriend
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed remove friend request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.FriendFailed{Code: wire.FriendErrorMalformed})
		}
		if err := h.Service.Remove(c.Username(), pkt.Username); err != nil {
			return h.sendFailure(c, err)
		}
		return c.Send(&wire.FriendRemoved{Username: pkt.Username})

	case wire.GetAllFriendsTag:
		list, err := h.Service.Lists(c.Username())
		if err != nil {
			return h.sendFailure(c, err)
		}
		return c.Send(list)

	default:
		h.Logger.Infof("received unknown friend packet %d from %s", tag, c.IPAddr())
	}
	return nil
}

// sendFailure maps a service error onto the stable wire codes. Storage
// errors are logged with full detail but cross the wire as a bare code.
func (h *Handler) sendFailure(c *client.Client, err error) error {
	code := wire.FriendErrorStorage
	switch {
	case errors.Is(err, ErrNoSuchUser):
		code = wire.FriendErrorNoSuchUser
	case errors.Is(err, ErrConflict):
		code = wire.FriendErrorAlreadyRelated
	default:
		h.Logger.Errorf("friend storage error for %q: %s", c.Username(), err)
	}
	return c.Send(&wire.FriendFailed{Code: code})
}
