package session

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sethcallen/harbinger/internal/client"
	"github.com/sethcallen/harbinger/internal/core"
	"github.com/sethcallen/harbinger/internal/core/auth"
	"github.com/sethcallen/harbinger/internal/core/data"
	"github.com/sethcallen/harbinger/internal/wire"
)

// testConn is a net.Conn that records everything written to it so tests can
// decode the frames a handler sent.
type testConn struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *testConn) Read(b []byte) (int, error) { return 0, io.EOF }

func (c *testConn) Write(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(b)
}

func (c *testConn) Close() error { return nil }

func (c *testConn) LocalAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 15000}
}

func (c *testConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 56000}
}

func (c *testConn) SetDeadline(t time.Time) error      { return nil }
func (c *testConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *testConn) SetWriteDeadline(t time.Time) error { return nil }

type sentFrame struct {
	tag     uint16
	payload []byte
}

// sentFrames decodes every frame written to conn since the last call.
func sentFrames(t *testing.T, conn *testConn) []sentFrame {
	t.Helper()
	conn.mu.Lock()
	defer conn.mu.Unlock()

	var frames []sentFrame
	raw := conn.buf.Bytes()
	for len(raw) > 0 {
		header, err := wire.ParseHeader(raw)
		if err != nil {
			t.Fatalf("error parsing sent frame header: %v", err)
		}
		frames = append(frames, sentFrame{
			tag:     header.Tag,
			payload: raw[wire.HeaderSize:header.Size],
		})
		raw = raw[header.Size:]
	}
	conn.buf.Reset()
	return frames
}

func lastFrame(t *testing.T, conn *testConn) sentFrame {
	t.Helper()
	frames := sentFrames(t, conn)
	if len(frames) == 0 {
		t.Fatal("expected at least one frame to have been sent")
	}
	return frames[len(frames)-1]
}

type fakeAccounts struct {
	accounts  map[string]*data.Account
	findErr   error
	createErr error
}

func (f *fakeAccounts) Find(username string) (*data.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.accounts[username], nil
}

func (f *fakeAccounts) Create(account *data.Account) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.accounts[account.Username] = account
	return nil
}

type fakeNotifier struct {
	logins  []string
	logouts []string
}

func (f *fakeNotifier) NotifyLogin(username string)  { f.logins = append(f.logins, username) }
func (f *fakeNotifier) NotifyLogout(username string) { f.logouts = append(f.logouts, username) }

var (
	testKeys     *auth.KeyPair
	testKeysOnce sync.Once
)

// keysForTest shares one RSA keypair across the package's tests since key
// generation dominates the test runtime otherwise.
func keysForTest(t *testing.T) *auth.KeyPair {
	t.Helper()
	testKeysOnce.Do(func() {
		var err error
		testKeys, err = auth.GenerateKeyPair()
		if err != nil {
			t.Fatalf("error generating test keypair: %v", err)
		}
	})
	return testKeys
}

func testHandler(t *testing.T, accounts *fakeAccounts) (*Handler, *fakeNotifier) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	config := &core.Config{}
	config.AllowRegistration = true

	notifier := &fakeNotifier{}
	return &Handler{
		Config:   config,
		Logger:   logger,
		Registry: NewRegistry(),
		Accounts: accounts,
		Keys:     keysForTest(t),
		Friends:  notifier,
	}, notifier
}

func seedAccount(t *testing.T, accounts *fakeAccounts, username, password string) {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("error hashing test password: %v", err)
	}
	accounts.accounts[username] = &data.Account{Username: username, Password: hash}
}

func encryptPassword(t *testing.T, password string) []byte {
	t.Helper()
	ciphertext, err := keysForTest(t).EncryptPassword(password)
	if err != nil {
		t.Fatalf("error encrypting test password: %v", err)
	}
	return ciphertext
}

func sendLogin(t *testing.T, handler *Handler, c *client.Client, username string, password []byte) {
	t.Helper()
	var w wire.Writer
	(&wire.LoginRequest{Username: username, Password: password}).MarshalPayload(&w)
	if err := handler.Handle(context.Background(), c, wire.LoginRequestTag, w.Bytes()); err != nil {
		t.Fatalf("Handle() returned an unexpected error: %v", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	accounts := &fakeAccounts{accounts: make(map[string]*data.Account)}
	seedAccount(t, accounts, "alice", "hunter2")
	handler, notifier := testHandler(t, accounts)

	conn := &testConn{}
	c := client.NewClient(conn)
	sendLogin(t, handler, c, "alice", encryptPassword(t, "hunter2"))

	frame := lastFrame(t, conn)
	if frame.tag != wire.LoginSuccessTag {
		t.Fatalf("expected LoginSuccess, got tag %d", frame.tag)
	}
	if c.Username() != "alice" {
		t.Errorf("expected the session to be bound to alice, got %q", c.Username())
	}
	if !handler.Registry.IsOnline("alice") {
		t.Error("expected alice to be registered as online")
	}
	if len(notifier.logins) != 1 || notifier.logins[0] != "alice" {
		t.Errorf("expected a login notice for alice, got %v", notifier.logins)
	}
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, accounts *fakeAccounts, handler *Handler)
		username string
		password []byte
		wantCode byte
	}{
		{
			name:     "unknown username",
			setup:    func(t *testing.T, accounts *fakeAccounts, handler *Handler) {},
			username: "alice",
			wantCode: wire.LoginErrorBadCredentials,
		},
		{
			name: "wrong password",
			setup: func(t *testing.T, accounts *fakeAccounts, handler *Handler) {
				seedAccount(t, accounts, "alice", "hunter2")
			},
			username: "alice",
			password: encryptPassword(t, "wrong"),
			wantCode: wire.LoginErrorBadCredentials,
		},
		{
			name: "banned account",
			setup: func(t *testing.T, accounts *fakeAccounts, handler *Handler) {
				seedAccount(t, accounts, "alice", "hunter2")
				accounts.accounts["alice"].Banned = true
			},
			username: "alice",
			wantCode: wire.LoginErrorBadCredentials,
		},
		{
			name: "username already logged in elsewhere",
			setup: func(t *testing.T, accounts *fakeAccounts, handler *Handler) {
				seedAccount(t, accounts, "alice", "hunter2")
				handler.Registry.Bind("alice", client.NewClient(&testConn{}))
			},
			username: "alice",
			wantCode: wire.LoginErrorRejected,
		},
		{
			name: "storage error",
			setup: func(t *testing.T, accounts *fakeAccounts, handler *Handler) {
				accounts.findErr = io.ErrUnexpectedEOF
			},
			username: "alice",
			wantCode: wire.LoginErrorStorage,
		},
		{
			name:     "undecryptable password",
			setup:    func(t *testing.T, accounts *fakeAccounts, handler *Handler) {},
			username: "alice",
			password: []byte("garbage"),
			wantCode: wire.LoginErrorMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &fakeAccounts{accounts: make(map[string]*data.Account)}
			handler, _ := testHandler(t, accounts)
			tt.setup(t, accounts, handler)

			password := tt.password
			if password == nil {
				password = encryptPassword(t, "hunter2")
			}

			conn := &testConn{}
			c := client.NewClient(conn)
			sendLogin(t, handler, c, tt.username, password)

			frame := lastFrame(t, conn)
			if frame.tag != wire.LoginFailedTag {
				t.Fatalf("expected LoginFailed, got tag %d", frame.tag)
			}
			var failed wire.LoginFailed
			if err := failed.UnmarshalPayload(wire.NewReader(frame.payload)); err != nil {
				t.Fatalf("error decoding LoginFailed: %v", err)
			}
			if failed.Code != tt.wantCode {
				t.Errorf("expected error code %d, got %d", tt.wantCode, failed.Code)
			}
			if c.LoggedIn() {
				t.Error("expected the session to remain unauthenticated")
			}
		})
	}
}

func TestLoginWhileLoggedIn(t *testing.T) {
	accounts := &fakeAccounts{accounts: make(map[string]*data.Account)}
	seedAccount(t, accounts, "alice", "hunter2")
	seedAccount(t, accounts, "bob", "hunter2")
	handler, _ := testHandler(t, accounts)

	conn := &testConn{}
	c := client.NewClient(conn)
	sendLogin(t, handler, c, "alice", encryptPassword(t, "hunter2"))
	sentFrames(t, conn)

	// A second login on the same connection is rejected, even as another user.
	sendLogin(t, handler, c, "bob", encryptPassword(t, "hunter2"))
	frame := lastFrame(t, conn)
	if frame.tag != wire.LoginFailedTag {
		t.Fatalf("expected LoginFailed, got tag %d", frame.tag)
	}
	if c.Username() != "alice" {
		t.Errorf("expected the session to stay bound to alice, got %q", c.Username())
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(t *testing.T, accounts *fakeAccounts, handler *Handler)
		username   string
		wantTag    uint16
		wantCode   byte
		wantStored bool
	}{
		{
			name:       "success",
			setup:      func(t *testing.T, accounts *fakeAccounts, handler *Handler) {},
			username:   "alice",
			wantTag:    wire.RegisterSuccessTag,
			wantStored: true,
		},
		{
			name: "registration disabled",
			setup: func(t *testing.T, accounts *fakeAccounts, handler *Handler) {
				handler.Config.AllowRegistration = false
			},
			username: "alice",
			wantTag:  wire.RegisterFailedTag,
			wantCode: wire.LoginErrorRejected,
		},
		{
			name: "duplicate username",
			setup: func(t *testing.T, accounts *fakeAccounts, handler *Handler) {
				seedAccount(t, accounts, "alice", "hunter2")
			},
			username: "alice",
			wantTag:  wire.RegisterFailedTag,
			wantCode: wire.LoginErrorRejected,
		},
		{
			name:     "empty username",
			setup:    func(t *testing.T, accounts *fakeAccounts, handler *Handler) {},
			username: "",
			wantTag:  wire.RegisterFailedTag,
			wantCode: wire.LoginErrorMalformed,
		},
		{
			name: "storage error",
			setup: func(t *testing.T, accounts *fakeAccounts, handler *Handler) {
				accounts.createErr = io.ErrUnexpectedEOF
			},
			username: "alice",
			wantTag:  wire.RegisterFailedTag,
			wantCode: wire.LoginErrorStorage,
		},
		{
			// A concurrent registration can claim the username after the
			// duplicate check; losing that race is a rejection.
			name: "username taken at insert",
			setup: func(t *testing.T, accounts *fakeAccounts, handler *Handler) {
				accounts.createErr = data.ErrUsernameTaken
			},
			username: "alice",
			wantTag:  wire.RegisterFailedTag,
			wantCode: wire.LoginErrorRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &fakeAccounts{accounts: make(map[string]*data.Account)}
			handler, _ := testHandler(t, accounts)
			tt.setup(t, accounts, handler)

			conn := &testConn{}
			c := client.NewClient(conn)

			var w wire.Writer
			(&wire.RegisterRequest{
				Username: tt.username,
				Password: encryptPassword(t, "hunter2"),
			}).MarshalPayload(&w)
			if err := handler.Handle(context.Background(), c, wire.RegisterRequestTag, w.Bytes()); err != nil {
				t.Fatalf("Handle() returned an unexpected error: %v", err)
			}

			frame := lastFrame(t, conn)
			if frame.tag != tt.wantTag {
				t.Fatalf("expected tag %d, got %d", tt.wantTag, frame.tag)
			}
			if tt.wantTag == wire.RegisterFailedTag {
				var failed wire.RegisterFailed
				if err := failed.UnmarshalPayload(wire.NewReader(frame.payload)); err != nil {
					t.Fatalf("error decoding RegisterFailed: %v", err)
				}
				if failed.Code != tt.wantCode {
					t.Errorf("expected error code %d, got %d", tt.wantCode, failed.Code)
				}
			}

			if tt.wantStored {
				account := accounts.accounts[tt.username]
				if account == nil {
					t.Fatal("expected the account to be stored")
				}
				if account.Password == "hunter2" {
					t.Error("expected the stored password to be hashed")
				}
				if !auth.CheckPassword(account.Password, "hunter2") {
					t.Error("expected the stored hash to match the password")
				}
			}
		})
	}
}

func TestLogout(t *testing.T) {
	accounts := &fakeAccounts{accounts: make(map[string]*data.Account)}
	seedAccount(t, accounts, "alice", "hunter2")
	handler, notifier := testHandler(t, accounts)

	var cleaned []string
	handler.Cleanup = func(c *client.Client) { cleaned = append(cleaned, c.Username()) }

	conn := &testConn{}
	c := client.NewClient(conn)
	sendLogin(t, handler, c, "alice", encryptPassword(t, "hunter2"))
	sentFrames(t, conn)

	if err := handler.Handle(context.Background(), c, wire.LogoutRequestTag, nil); err != nil {
		t.Fatalf("Handle() returned an unexpected error: %v", err)
	}

	frame := lastFrame(t, conn)
	if frame.tag != wire.LogoutSuccessTag {
		t.Fatalf("expected LogoutSuccess, got tag %d", frame.tag)
	}
	if c.LoggedIn() {
		t.Error("expected the session to be unauthenticated after logout")
	}
	if handler.Registry.IsOnline("alice") {
		t.Error("expected alice to be offline after logout")
	}
	if len(cleaned) != 1 || cleaned[0] != "alice" {
		t.Errorf("expected cleanup to run for alice, got %v", cleaned)
	}
	if len(notifier.logouts) != 1 || notifier.logouts[0] != "alice" {
		t.Errorf("expected a logout notice for alice, got %v", notifier.logouts)
	}

	// Logout is idempotent for a session that never logged in.
	handler.Logout(c)
	if len(notifier.logouts) != 1 {
		t.Errorf("expected no additional logout notices, got %v", notifier.logouts)
	}
}
