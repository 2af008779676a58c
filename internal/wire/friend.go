package wire

// Tags owned by the friend handler.
const (
	SendFriendRequestTag uint16 = FriendTagBase + iota
	FriendRequestSentTag
	FriendRequestReceivedTag
	AcceptFriendRequestTag
	FriendRequestAcceptedTag
	DeclineFriendRequestTag
	FriendRequestDeclinedTag
	RemoveFriendTag
	FriendRemovedTag
	GetAllFriendsTag
	FriendsListTag
	FriendOnlineTag
	FriendOfflineTag
	FriendFailedTag
)

// Error codes carried by FriendFailed.
const (
	FriendErrorMalformed byte = iota
	FriendErrorNotLoggedIn
	FriendErrorStorage
	FriendErrorNoSuchUser
	// FriendErrorAlreadyRelated covers every relationship-state conflict:
	// an existing friendship or pending request for SendFriendRequest, and
	// a missing pending request for accept/decline.
	FriendErrorAlreadyRelated
)

type SendFriendRequest struct {
	Receiver string
}

func (m *SendFriendRequest) Tag() uint16 { return SendFriendRequestTag }

func (m *SendFriendRequest) MarshalPayload(w *Writer) {
	w.WriteString(m.Receiver)
}

func (m *SendFriendRequest) UnmarshalPayload(r *Reader) error {
	m.Receiver = r.String()
	return r.Err()
}

type FriendRequestSent struct {
	Receiver string
}

func (m *FriendRequestSent) Tag() uint16 { return FriendRequestSentTag }

func (m *FriendRequestSent) MarshalPayload(w *Writer) {
	w.WriteString(m.Receiver)
}

func (m *FriendRequestSent) UnmarshalPayload(r *Reader) error {
	m.Receiver = r.String()
	return r.Err()
}

// FriendRequestReceived is pushed to the receiver if they are online when
// the request is recorded.
type FriendRequestReceived struct {
	Sender string
}

func (m *FriendRequestReceived) Tag() uint16 { return FriendRequestReceivedTag }

func (m *FriendRequestReceived) MarshalPayload(w *Writer) {
	w.WriteString(m.Sender)
}

func (m *FriendRequestReceived) UnmarshalPayload(r *Reader) error {
	m.Sender = r.String()
	return r.Err()
}

type AcceptFriendRequest struct {
	Sender string
}

func (m *AcceptFriendRequest) Tag() uint16 { return AcceptFriendRequestTag }

func (m *AcceptFriendRequest) MarshalPayload(w *Writer) {
	w.WriteString(m.Sender)
}

func (m *AcceptFriendRequest) UnmarshalPayload(r *Reader) error {
	m.Sender = r.String()
	return r.Err()
}

type FriendRequestAccepted struct {
	Username string
}

func (m *FriendRequestAccepted) Tag() uint16 { return FriendRequestAcceptedTag }

func (m *FriendRequestAccepted) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
}

func (m *FriendRequestAccepted) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	return r.Err()
}

type DeclineFriendRequest struct {
	Sender string
}

func (m *DeclineFriendRequest) Tag() uint16 { return DeclineFriendRequestTag }

func (m *DeclineFriendRequest) MarshalPayload(w *Writer) {
	w.WriteString(m.Sender)
}

func (m *DeclineFriendRequest) UnmarshalPayload(r *Reader) error {
	m.Sender = r.String()
	return r.Err()
}

type FriendRequestDeclined struct {
	Username string
}

func (m *FriendRequestDeclined) Tag() uint16 { return FriendRequestDeclinedTag }

func (m *FriendRequestDeclined) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
}

func (m *FriendRequestDeclined) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	return r.Err()
}

type RemoveFriend struct {
	Username string
}

func (m *RemoveFriend) Tag() uint16 { return RemoveFriendTag }

func (m *RemoveFriend) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
}

func (m *RemoveFriend) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	return r.Err()
}

type FriendRemoved struct {
	Username string
}

func (m *FriendRemoved) Tag() uint16 { return FriendRemovedTag }

func (m *FriendRemoved) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
}

func (m *FriendRemoved) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	return r.Err()
}

type GetAllFriends struct{}

func (m *GetAllFriends) Tag() uint16            { return GetAllFriendsTag }
func (m *GetAllFriends) MarshalPayload(*Writer) {}

// FriendsList carries the four disjoint relationship lists for the caller.
type FriendsList struct {
	Online   []string
	Offline  []string
	Incoming []string
	Outgoing []string
}

func (m *FriendsList) Tag() uint16 { return FriendsListTag }

func (m *FriendsList) MarshalPayload(w *Writer) {
	w.WriteStrings(m.Online)
	w.WriteStrings(m.Offline)
	w.WriteStrings(m.Incoming)
	w.WriteStrings(m.Outgoing)
}

func (m *FriendsList) UnmarshalPayload(r *Reader) error {
	m.Online = r.Strings()
	m.Offline = r.Strings()
	m.Incoming = r.Strings()
	m.Outgoing = r.Strings()
	return r.Err()
}

type FriendOnline struct {
	Username string
}

func (m *FriendOnline) Tag() uint16 { return FriendOnlineTag }

func (m *FriendOnline) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
}

func (m *FriendOnline) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	return r.Err()
}

type FriendOffline struct {
	Username string
}

func (m *FriendOffline) Tag() uint16 { return FriendOfflineTag }

func (m *FriendOffline) MarshalPayload(w *Writer) {
	w.WriteString(m.Username)
}

func (m *FriendOffline) UnmarshalPayload(r *Reader) error {
	m.Username = r.String()
	return r.Err()
}

type FriendFailed struct {
	Code byte
}

func (m *FriendFailed) Tag() uint16 { return FriendFailedTag }

func (m *FriendFailed) MarshalPayload(w *Writer) {
	w.WriteUint8(m.Code)
}

func (m *FriendFailed) UnmarshalPayload(r *Reader) error {
	m.Code = r.Uint8()
	return r.Err()
}
