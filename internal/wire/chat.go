package wire

// Tags owned by the chat handler.
const (
	JoinGroupTag uint16 = ChatTagBase + iota
	GroupJoinedTag
	LeaveGroupTag
	GroupLeftTag
	SendGroupMessageTag
	GroupMessageTag
	SendPrivateMessageTag
	PrivateMessageTag
	PrivateMessageReceiptTag
	SendRoomMessageTag
	RoomMessageTag
	ListGroupsTag
	ActiveGroupsTag
	ChatFailedTag
)

// Error codes carried by ChatFailed. The first four are shared by all three
// message routes; AlreadyMember is used only by JoinGroup.
const (
	ChatErrorMalformed byte = iota
	ChatErrorNotLoggedIn
	ChatErrorNotMember
	ChatErrorReceiverOffline
	ChatErrorAlreadyMember
)

type JoinGroup struct {
	Name string
}

func (m *JoinGroup) Tag() uint16 { return JoinGroupTag }

func (m *JoinGroup) MarshalPayload(w *Writer) {
	w.WriteString(m.Name)
}

func (m *JoinGroup) UnmarshalPayload(r *Reader) error {
	m.Name = r.String()
	return r.Err()
}

// GroupJoined confirms a join and carries the group's full member list.
// Name is the group's display name, which may differ in case from the
// name in the request.
type GroupJoined struct {
	Name    string
	Members []string
}

func (m *GroupJoined) Tag() uint16 { return GroupJoinedTag }

func (m *GroupJoined) MarshalPayload(w *Writer) {
	w.WriteString(m.Name)
	w.WriteStrings(m.Members)
}

func (m *GroupJoined) UnmarshalPayload(r *Reader) error {
	m.Name = r.String()
	m.Members = r.Strings()
	return r.Err()
}

type LeaveGroup struct {
	Name string
}

func (m *LeaveGroup) Tag() uint16 { return LeaveGroupTag }

func (m *LeaveGroup) MarshalPayload(w *Writer) {
	w.WriteString(m.Name)
}

func (m *LeaveGroup) UnmarshalPayload(r *Reader) error {
	m.Name = r.String()
	return r.Err()
}

type GroupLeft struct {
	Name string
}

func (m *GroupLeft) Tag() uint16 { return GroupLeftTag }

func (m *GroupLeft) MarshalPayload(w *Writer) {
	w.WriteString(m.Name)
}

func (m *GroupLeft) UnmarshalPayload(r *Reader) error {
	m.Name = r.String()
	return r.Err()
}

type SendGroupMessage struct {
	Group string
	Text  string
}

func (m *SendGroupMessage) Tag() uint16 { return SendGroupMessageTag }

func (m *SendGroupMessage) MarshalPayload(w *Writer) {
	w.WriteString(m.Group)
	w.WriteString(m.Text)
}

func (m *SendGroupMessage) UnmarshalPayload(r *Reader) error {
	m.Group = r.String()
	m.Text = r.String()
	return r.Err()
}

// GroupMessage is broadcast to every member of the group, sender included.
type GroupMessage struct {
	Group  string
	Sender string
	Text   string
}

func (m *GroupMessage) Tag() uint16 { return GroupMessageTag }

func (m *GroupMessage) MarshalPayload(w *Writer) {
	w.WriteString(m.Group)
	w.WriteString(m.Sender)
	w.WriteString(m.Text)
}

func (m *GroupMessage) UnmarshalPayload(r *Reader) error {
	m.Group = r.String()
	m.Sender = r.String()
	m.Text = r.String()
	return r.Err()
}

type SendPrivateMessage struct {
	Receiver string
	Text     string
}

func (m *SendPrivateMessage) Tag() uint16 { return SendPrivateMessageTag }

func (m *SendPrivateMessage) MarshalPayload(w *Writer) {
	w.WriteString(m.Receiver)
	w.WriteString(m.Text)
}

func (m *SendPrivateMessage) UnmarshalPayload(r *Reader) error {
	m.Receiver = r.String()
	m.Text = r.String()
	return r.Err()
}

type PrivateMessage struct {
	Sender string
	Text   string
}

func (m *PrivateMessage) Tag() uint16 { return PrivateMessageTag }

func (m *PrivateMessage) MarshalPayload(w *Writer) {
	w.WriteString(m.Sender)
	w.WriteString(m.Text)
}

func (m *PrivateMessage) UnmarshalPayload(r *Reader) error {
	m.Sender = r.String()
	m.Text = r.String()
	return r.Err()
}

// PrivateMessageReceipt echoes a delivered private message back to its sender.
type PrivateMessageReceipt struct {
	Receiver string
	Text     string
}

func (m *PrivateMessageReceipt) Tag() uint16 { return PrivateMessageReceiptTag }

func (m *PrivateMessageReceipt) MarshalPayload(w *Writer) {
	w.WriteString(m.Receiver)
	w.WriteString(m.Text)
}

func (m *PrivateMessageReceipt) UnmarshalPayload(r *Reader) error {
	m.Receiver = r.String()
	m.Text = r.String()
	return r.Err()
}

type SendRoomMessage struct {
	Text string
}

func (m *SendRoomMessage) Tag() uint16 { return SendRoomMessageTag }

func (m *SendRoomMessage) MarshalPayload(w *Writer) {
	w.WriteString(m.Text)
}

func (m *SendRoomMessage) UnmarshalPayload(r *Reader) error {
	m.Text = r.String()
	return r.Err()
}

// RoomMessage is broadcast to every member of the sender's room, sender included.
type RoomMessage struct {
	Sender string
	Text   string
}

func (m *RoomMessage) Tag() uint16 { return RoomMessageTag }

func (m *RoomMessage) MarshalPayload(w *Writer) {
	w.WriteString(m.Sender)
	w.WriteString(m.Text)
}

func (m *RoomMessage) UnmarshalPayload(r *Reader) error {
	m.Sender = r.String()
	m.Text = r.String()
	return r.Err()
}

type ListGroups struct{}

func (m *ListGroups) Tag() uint16            { return ListGroupsTag }
func (m *ListGroups) MarshalPayload(*Writer) {}

type ActiveGroups struct {
	Names []string
}

func (m *ActiveGroups) Tag() uint16 { return ActiveGroupsTag }

func (m *ActiveGroups) MarshalPayload(w *Writer) {
	w.WriteStrings(m.Names)
}

func (m *ActiveGroups) UnmarshalPayload(r *Reader) error {
	m.Names = r.Strings()
	return r.Err()
}

type ChatFailed struct {
	Code byte
}

func (m *ChatFailed) Tag() uint16 { return ChatFailedTag }

func (m *ChatFailed) MarshalPayload(w *Writer) {
	w.WriteUint8(m.Code)
}

func (m *ChatFailed) UnmarshalPayload(r *Reader) error {
	m.Code = r.Uint8()
	return r.Err()
}
