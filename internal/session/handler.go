package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/core"
	"github.com/sethcallen/harbinger/internal/core/auth"
	"github.com/sethcallen/harbinger/internal/core/data"
	"github.com/sethcallen/harbinger/internal/wire"
)

// AccountStore is the slice of the persistence layer the session handler
// needs. Implemented by data.Accounts.
type AccountStore interface {
	Find(username string) (*data.Account, error)
	Create(account *data.Account) error
}

// PresenceNotifier is told about logins and logouts so that online friends
// can be sent presence notices. Implemented by friend.Service.
type PresenceNotifier interface {
	NotifyLogin(username string)
	NotifyLogout(username string)
}

// Handler processes the session tag range: login, register, and logout.
type Handler struct {
	Config   *core.Config
	Logger   *logrus.Logger
	Registry *Registry
	Accounts AccountStore
	Keys     *auth.KeyPair
	Friends  PresenceNotifier

	// Cleanup removes a departing session from its room and all chat
	// groups. Wired by the controller; shared with the disconnect path.
	Cleanup func(c *client.Client)
}

func (h *Handler) Identifier() string { return "SESSION" }

func (h *Handler) TagRange() (uint16, uint16) {
	return wire.SessionTagBase, wire.SessionTagBase + wire.TagRangeSize - 1
}

func (h *Handler) Handle(ctx context.Context, c *client.Client, tag uint16, payload []byte) error {
	switch tag {
	case wire.LoginRequestTag:
		var pkt wire.LoginRequest
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed login request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.LoginFailed{Code: wire.LoginErrorMalformed})
		}
		return h.handleLogin(c, &pkt)
	case wire.RegisterRequestTag:
		var pkt wire.RegisterRequest
		if err := pkt.UnmarshalPayload(wire.NewReader(payload)); err != nil {
			h.Logger.Warnf("malformed register request from %s: %s", c.IPAddr(), err)
			return c.Send(&wire.RegisterFailed{Code: wire.LoginErrorMalformed})
		}
		return h.handleRegister(c, &pkt)
	case wire.LogoutRequestTag:
		h.Logout(c)
		return c.Send(&wire.LogoutSuccess{})
	default:
		h.Logger.Infof("received unknown session packet %d from %s", tag, c.IPAddr())
	}
	return nil
}

func (h *Handler) handleLogin(c *client.Client, pkt *wire.LoginRequest) error {
	if c.LoggedIn() {
		h.Logger.Warnf("login request from %s while already logged in as %q", c.IPAddr(), c.Username())
		return c.Send(&wire.LoginFailed{Code: wire.LoginErrorRejected})
	}

	password, err := h.Keys.DecryptPassword(pkt.Password)
	if err != nil {
		h.Logger.Warnf("undecryptable password in login request from %s", c.IPAddr())
		return c.Send(&wire.LoginFailed{Code: wire.LoginErrorMalformed})
	}

	account, err := h.Accounts.Find(pkt.Username)
	if err != nil {
		h.Logger.Errorf("error in account lookup for %q: %s", pkt.Username, err)
		return c.Send(&wire.LoginFailed{Code: wire.LoginErrorStorage})
	}
	if account == nil || !auth.CheckPassword(account.Password, password) {
		return c.Send(&wire.LoginFailed{Code: wire.LoginErrorBadCredentials})
	}
	if account.Banned {
		h.Logger.Warnf("rejected login for banned account %q from %s", pkt.Username, c.IPAddr())
		return c.Send(&wire.LoginFailed{Code: wire.LoginErrorBadCredentials})
	}

	// The registry is the authority on "logged in elsewhere"; Bind fails
	// atomically if another session raced us to the username.
	if !h.Registry.Bind(account.Username, c) {
		return c.Send(&wire.LoginFailed{Code: wire.LoginErrorRejected})
	}
	c.SetUsername(account.Username)

	h.Logger.Infof("%q logged in from %s", account.Username, c.IPAddr())

	if err := c.Send(&wire.LoginSuccess{Username: account.Username}); err != nil {
		return err
	}

	h.Friends.NotifyLogin(account.Username)
	return nil
}

func (h *Handler) handleRegister(c *client.Client, pkt *wire.RegisterRequest) error {
	if !h.Config.AllowRegistration {
		h.Logger.Warnf("rejected register request from %s: registration is disabled", c.IPAddr())
		return c.Send(&wire.RegisterFailed{Code: wire.LoginErrorRejected})
	}
	if pkt.Username == "" {
		return c.Send(&wire.RegisterFailed{Code: wire.LoginErrorMalformed})
	}

	password, err := h.Keys.DecryptPassword(pkt.Password)
	if err != nil {
		h.Logger.Warnf("undecryptable password in register request from %s", c.IPAddr())
		return c.Send(&wire.RegisterFailed{Code: wire.LoginErrorMalformed})
	}

	existing, err := h.Accounts.Find(pkt.Username)
	if err != nil {
		h.Logger.Errorf("error in account lookup for %q: %s", pkt.Username, err)
		return c.Send(&wire.RegisterFailed{Code: wire.LoginErrorStorage})
	}
	if existing != nil {
		return c.Send(&wire.RegisterFailed{Code: wire.LoginErrorRejected})
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.Logger.Errorf("error hashing password for %q: %s", pkt.Username, err)
		return c.Send(&wire.RegisterFailed{Code: wire.LoginErrorStorage})
	}

	account := &data.Account{
		Username:         pkt.Username,
		Password:         hash,
		RegistrationDate: time.Now(),
	}
	if err := h.Accounts.Create(account); err != nil {
		// A concurrent registration can win the username between the Find
		// above and the insert; that loss is a rejection, not a storage error.
		if errors.Is(err, data.ErrUsernameTaken) {
			return c.Send(&wire.RegisterFailed{Code: wire.LoginErrorRejected})
		}
		h.Logger.Errorf("error creating account %q: %s", pkt.Username, err)
		return c.Send(&wire.RegisterFailed{Code: wire.LoginErrorStorage})
	}

	h.Logger.Infof("registered account %q from %s", pkt.Username, c.IPAddr())
	return c.Send(&wire.RegisterSuccess{})
}

// Logout tears down the session state bound at login: room membership, chat
// group membership, presence notices, and the username binding itself. It is
// a no-op for unauthenticated sessions and is also invoked by the disconnect
// path, where no reply can be sent.
func (h *Handler) Logout(c *client.Client) {
	username := c.Username()
	if username == "" {
		return
	}

	if h.Cleanup != nil {
		h.Cleanup(c)
	}
	h.Friends.NotifyLogout(username)
	h.Registry.Unbind(username, c)
	c.SetUsername("")

	h.Logger.Infof("%q logged out", username)
}
