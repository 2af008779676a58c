package wire

// Tags owned by the session handler.
const (
	WelcomeTag uint16 = SessionTagBase + iota
	LoginRequestTag
	LoginSuccessTag
	LoginFailedTag
	RegisterRequestTag
	RegisterSuccessTag
	RegisterFailedTag
	LogoutRequestTag
	LogoutSuccessTag
)

// Error codes carried by LoginFailed and RegisterFailed. The numeric values
// are part of the wire contract and must not be reordered.
const (
	LoginErrorMalformed byte = iota
	LoginErrorBadCredentials
	LoginErrorStorage
	// LoginErrorRejected doubles as "already logged in" for login attempts
	// and "username taken" (or registration disabled) for registrations.
	LoginErrorRejected
)

// Welcome is sent to every client immediately after the connection is
// accepted. PublicKey holds the server's RSA public key in PKIX DER form;
// clients encrypt password fields with it.
type Welcome struct {
	PublicKey []byte
}

func (m *Welcome) Tag() uint16 { return WelcomeTag }

func (m *Welcome) MarshalPayload(w *Writer) {
	w.WriteBytes(m.PublicKey)
}

func (m *Welcome) UnmarshalPayload(r *Reader) error {
	m.PublicKey = r.Bytes()
	return r.Err()
}

// LoginRequest authenticates the session under a username. Password is the
// RSA ciphertext of the user's password.
type LoginRequest struct {
	Username string
	Password []byte
}

func (m *LoginRequest) Tag() uint16 { return LoginRequestTag }

func (m *LoginRequest) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
	w.WriteBytes(m.Password)
}

func (m *LoginRequest) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	m.Password = r.Bytes()
	return r.Err()
}

type LoginSuccess struct {
	Username string
}

func (m *LoginSuccess) Tag() uint16 { return LoginSuccessTag }

func (m *LoginSuccess) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
}

func (m *LoginSuccess) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	return r.Err()
}

type LoginFailed struct {
	Code byte
}

func (m *LoginFailed) Tag() uint16 { return LoginFailedTag }

func (m *LoginFailed) MarshalPayload(w *Writer) {
	w.WriteUint8(m.Code)
}

func (m *LoginFailed) UnmarshalPayload(r *Reader) error {
	m.Code = r.Uint8()
	return r.Err()
}

// RegisterRequest creates a new account. Password is RSA ciphertext, as in
// LoginRequest.
type RegisterRequest struct {
	Username string
	Password []byte
}

func (m *RegisterRequest) Tag() uint16 { return RegisterRequestTag }

func (m *RegisterRequest) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
	w.WriteBytes(m.Password)
}

func (m *RegisterRequest) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	m.Password = r.Bytes()
	return r.Err()
}

type RegisterSuccess struct{}

func (m *RegisterSuccess) Tag() uint16            { return RegisterSuccessTag }
func (m *RegisterSuccess) MarshalPayload(*Writer) {}

type RegisterFailed struct {
	Code byte
}

func (m *RegisterFailed) Tag() uint16 { return RegisterFailedTag }

func (m *RegisterFailed) MarshalPayload(w *Writer) {
	w.WriteUint8(m.Code)
}

func (m *RegisterFailed) UnmarshalPayload(r *Reader) error {
	m.Code = r.Uint8()
	return r.Err()
}

type LogoutRequest struct{}

func (m *LogoutRequest) Tag() uint16            { return LogoutRequestTag }
func (m *LogoutRequest) MarshalPayload(*Writer) {}

type LogoutSuccess struct{}

func (m *LogoutSuccess) Tag() uint16            { return LogoutSuccessTag }
func (m *LogoutSuccess) MarshalPayload(*Writer) {}
