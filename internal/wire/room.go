package wire

// Tags owned by the room handler.
const (
	CreateRoomTag uint16 = RoomTagBase + iota
	RoomCreatedTag
	JoinRoomTag
	JoinSuccessTag
	JoinFailedTag
	PlayerJoinedTag
	LeaveRoomTag
	LeaveSuccessTag
	PlayerLeftTag
	GetOpenRoomsTag
	OpenRoomsTag
	ChangeColorTag
	ColorChangedTag
	StartGameTag
	GameStartedTag
	StartFailedTag
)

// Error codes carried by JoinFailed and StartFailed.
const (
	RoomErrorMalformed byte = iota
	RoomErrorNotLoggedIn
	// RoomErrorUnavailable covers "already in a room", "room full", "room
	// already started" and, for StartGame, "not the host".
	RoomErrorUnavailable
	RoomErrorNoLongerExists
)

// Player describes one room member as serialized inside room messages.
type Player struct {
	Username string
	Color    byte
	IsHost   bool
}

func (p *Player) marshal(w *Writer) {
	w.WriteString(p.Username)
	w.WriteUint8(p.Color)
	w.WriteBool(p.IsHost)
}

func (p *Player) unmarshal(r *Reader) {
	p.Username = r.String()
	p.Color = r.Uint8()
	p.IsHost = r.Bool()
}

// RoomListing is one entry of the open room list.
type RoomListing struct {
	ID       uint16
	Name     string
	Capacity byte
	Count    byte
}

func (l *RoomListing) marshal(w *Writer) {
	w.WriteUint16(l.ID)
	w.WriteString(l.Name)
	w.WriteUint8(l.Capacity)
	w.WriteUint8(l.Count)
}

func (l *RoomListing) unmarshal(r *Reader) {
	l.ID = r.Uint16()
	l.Name = r.String()
	l.Capacity = r.Uint8()
	l.Count = r.Uint8()
}

// CreateRoom opens a new room with the caller as host. An empty Name is
// substituted server-side with "<username>'s Lobby".
type CreateRoom struct {
	Name    string
	Visible bool
}

func (m *CreateRoom) Tag() uint16 { return CreateRoomTag }

func (m *CreateRoom) MarshalPayload(w *Writer) {
	w.WriteString(m.Name)
	w.WriteBool(m.Visible)
}

func (m *CreateRoom) UnmarshalPayload(r *Reader) error {
	m.Name = r.String()
	m.Visible = r.Bool()
	return r.Err()
}

type RoomCreated struct {
	ID       uint16
	Name     string
	Capacity byte
	Self     Player
}

func (m *RoomCreated) Tag() uint16 { return RoomCreatedTag }

func (m *RoomCreated) MarshalPayload(w *Writer) {
	w.WriteUint16(m.ID)
	w.WriteString(m.Name)
	w.WriteUint8(m.Capacity)
	m.Self.marshal(w)
}

func (m *RoomCreated) UnmarshalPayload(r *Reader) error {
	m.ID = r.Uint16()
	m.Name = r.String()
	m.Capacity = r.Uint8()
	m.Self.unmarshal(r)
	return r.Err()
}

type JoinRoom struct {
	ID uint16
}

func (m *JoinRoom) Tag() uint16 { return JoinRoomTag }

func (m *JoinRoom) MarshalPayload(w *Writer) {
	w.WriteUint16(m.ID)
}

func (m *JoinRoom) UnmarshalPayload(r *Reader) error {
	m.ID = r.Uint16()
	return r.Err()
}

// JoinSuccess is the direct reply to a successful JoinRoom and carries the
// full member list, joiner included.
type JoinSuccess struct {
	ID       uint16
	Name     string
	Capacity byte
	Members  []Player
}

func (m *JoinSuccess) Tag() uint16 { return JoinSuccessTag }

func (m *JoinSuccess) MarshalPayload(w *Writer) {
	w.WriteUint16(m.ID)
	w.WriteString(m.Name)
	w.WriteUint8(m.Capacity)
	w.WriteUint16(uint16(len(m.Members)))
	for i := range m.Members {
		m.Members[i].marshal(w)
	}
}

func (m *JoinSuccess) UnmarshalPayload(r *Reader) error {
	m.ID = r.Uint16()
	m.Name = r.String()
	m.Capacity = r.Uint8()
	count := int(r.Uint16())
	for i := 0; i < count && r.Err() == nil; i++ {
		var p Player
		p.unmarshal(r)
		m.Members = append(m.Members, p)
	}
	return r.Err()
}

type JoinFailed struct {
	Code byte
}

func (m *JoinFailed) Tag() uint16 { return JoinFailedTag }

func (m *JoinFailed) MarshalPayload(w *Writer) {
	w.WriteUint8(m.Code)
}

func (m *JoinFailed) UnmarshalPayload(r *Reader) error {
	m.Code = r.Uint8()
	return r.Err()
}

// PlayerJoined notifies existing room members of a new joiner.
type PlayerJoined struct {
	Player Player
}

func (m *PlayerJoined) Tag() uint16 { return PlayerJoinedTag }

func (m *PlayerJoined) MarshalPayload(w *Writer) {
	m.Player.marshal(w)
}

func (m *PlayerJoined) UnmarshalPayload(r *Reader) error {
	m.Player.unmarshal(r)
	return r.Err()
}

type LeaveRoom struct{}

func (m *LeaveRoom) Tag() uint16            { return LeaveRoomTag }
func (m *LeaveRoom) MarshalPayload(*Writer) {}

type LeaveSuccess struct{}

func (m *LeaveSuccess) Tag() uint16            { return LeaveSuccessTag }
func (m *LeaveSuccess) MarshalPayload(*Writer) {}

// PlayerLeft notifies remaining members of a departure. NewHost is empty
// when host status did not change.
type PlayerLeft struct {
	Username string
	NewHost  string
}

func (m *PlayerLeft) Tag() uint16 { return PlayerLeftTag }

func (m *PlayerLeft) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
	w.WriteString(m.NewHost)
}

func (m *PlayerLeft) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	m.NewHost = r.String()
	return r.Err()
}

type GetOpenRooms struct{}

func (m *GetOpenRooms) Tag() uint16            { return GetOpenRoomsTag }
func (m *GetOpenRooms) MarshalPayload(*Writer) {}

type OpenRooms struct {
	Rooms []RoomListing
}

func (m *OpenRooms) Tag() uint16 { return OpenRoomsTag }

func (m *OpenRooms) MarshalPayload(w *Writer) {
	w.WriteUint16(uint16(len(m.Rooms)))
	for i := range m.Rooms {
		m.Rooms[i].marshal(w)
	}
}

func (m *OpenRooms) UnmarshalPayload(r *Reader) error {
	count := int(r.Uint16())
	for i := 0; i < count && r.Err() == nil; i++ {
		var l RoomListing
		l.unmarshal(r)
		m.Rooms = append(m.Rooms, l)
	}
	return r.Err()
}

type ChangeColor struct {
	Color byte
}

func (m *ChangeColor) Tag() uint16 { return ChangeColorTag }

func (m *ChangeColor) MarshalPayload(w *Writer) {
	w.WriteUint8(m.Color)
}

func (m *ChangeColor) UnmarshalPayload(r *Reader) error {
	m.Color = r.Uint8()
	return r.Err()
}

type ColorChanged struct {
	Username string
	Color    byte
}

func (m *ColorChanged) Tag() uint16 { return ColorChangedTag }

func (m *ColorChanged) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
	w.WriteUint8(m.Color)
}

func (m *ColorChanged) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	m.Color = r.Uint8()
	return r.Err()
}

type StartGame struct{}

func (m *StartGame) Tag() uint16            { return StartGameTag }
func (m *StartGame) MarshalPayload(*Writer) {}

type GameStarted struct{}

func (m *GameStarted) Tag() uint16            { return GameStartedTag }
func (m *GameStarted) MarshalPayload(*Writer) {}

type StartFailed struct {
	Code byte
}

func (m *StartFailed) Tag() uint16 { return StartFailedTag }

func (m *StartFailed) MarshalPayload(w *Writer) {
	w.WriteUint8(m.Code)
}

func (m *StartFailed) UnmarshalPayload(r *Reader) error {
	m.Code = r.Uint8()
	return r.Err()
}
