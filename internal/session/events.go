package session

// Event names exchanged with clients.
const (
	EventJoinRoom         = "join-room"
	EventExistingUsers    = "existing-users"
	EventUserJoined       = "user-joined"
	EventOffer            = "offer"
	EventAnswer           = "answer"
	EventIceCandidate     = "ice-candidate"
	EventUserLeft         = "user-left"
	EventRoomUsers        = "room-users"
	EventRoomHost         = "room-host"
	EventChatMessage      = "chat-message"
	EventHandRaise        = "hand-raise"
	EventScreenShareStart = "screen-share-start"
	EventScreenShareStop  = "screen-share-stop"
	EventHostMuteAll      = "host-mute-all"
	EventForceMute        = "force-mute"
	EventHostKickUser     = "host-kick-user"
	EventKicked           = "kicked"
	EventLeaveRoom        = "leave-room"
	EventError            = "error"
)

// Members maps connection id to display name.
type Members map[string]string

type UserJoined struct {
	SocketID string `json:"socketId"`
	Name     string `json:"name"`
}

type RoomHost struct {
	HostID string `json:"hostId"`
}

type OfferRelay struct {
	Offer    any    `json:"offer"`
	SenderID string `json:"senderId"`
}

type AnswerRelay struct {
	Answer   any    `json:"answer"`
	SenderID string `json:"senderId"`
}

type CandidateRelay struct {
	Candidate any    `json:"candidate"`
	SenderID  string `json:"senderId"`
}

type ChatMessage struct {
	Message string `json:"message"`
	Name    string `json:"name"`
	Time    int64  `json:"time"` // unix milliseconds
}

type HandRaise struct {
	SocketID string `json:"socketId"`
	Username string `json:"username"`
	Raised   bool   `json:"raised"`
}

type ScreenShare struct {
	SocketID string `json:"socketId"`
}

type ErrorNotice struct {
	Message string `json:"message"`
}
