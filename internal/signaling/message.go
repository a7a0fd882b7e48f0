package signaling

// Inbound payloads, one per client event. Offer, answer and candidate bodies
// are opaque and relayed as decoded.

type JoinRequest struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type OfferRequest struct {
	Offer    any    `json:"offer"`
	TargetID string `json:"targetId"`
}

type AnswerRequest struct {
	Answer   any    `json:"answer"`
	TargetID string `json:"targetId"`
}

type CandidateRequest struct {
	Candidate any    `json:"candidate"`
	TargetID  string `json:"targetId"`
}

type ChatRequest struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`

	// Name is ignored; chat is sent under the registered display name.
	Name string `json:"name"`
}

type HandRaiseRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Raised   bool   `json:"raised"`
}

// RoomRequest carries screen-share-start/stop and host-mute-all.
type RoomRequest struct {
	RoomID string `json:"roomId"`
}

type KickRequest struct {
	RoomID   string `json:"roomId"`
	TargetID string `json:"targetId"`
}
