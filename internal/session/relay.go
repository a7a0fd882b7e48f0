package session

import "log/slog"

// Relay forwards WebRTC negotiation messages between two members of the same
// room. Payloads are opaque and passed through untouched.
type Relay struct {
	registry  *Registry
	directory *Directory
}

func NewRelay(registry *Registry, directory *Directory) *Relay {
	return &Relay{registry: registry, directory: directory}
}

func (rl *Relay) RelayOffer(senderID, targetID string, offer any) error {
	return rl.relay(OpOffer, senderID, targetID, OfferRelay{Offer: offer, SenderID: senderID})
}

func (rl *Relay) RelayAnswer(senderID, targetID string, answer any) error {
	return rl.relay(OpAnswer, senderID, targetID, AnswerRelay{Answer: answer, SenderID: senderID})
}

func (rl *Relay) RelayIceCandidate(senderID, targetID string, candidate any) error {
	return rl.relay(OpIceCandidate, senderID, targetID, CandidateRelay{Candidate: candidate, SenderID: senderID})
}

// relay delivers exactly one event to targetID when it shares a room with
// senderID. The membership check and the send happen under the room lock.
func (rl *Relay) relay(event, senderID, targetID string, data any) error {
	var roomID string
	if sender := rl.registry.Lookup(senderID); sender != nil {
		roomID = sender.RoomID()
	}
	if roomID == "" || targetID == "" {
		return opError(event, roomID, ErrInvalidTarget)
	}

	valid := false
	rl.directory.view(roomID, func(r *Room) {
		if _, ok := r.members[senderID]; !ok {
			return
		}
		if _, ok := r.members[targetID]; !ok {
			return
		}
		target := rl.registry.Lookup(targetID)
		if target == nil {
			return
		}
		valid = true
		if err := target.peer.Send(event, data); err != nil {
			slog.Warn("relay delivery failed", "event", event, "conn", senderID, "target", targetID, "error", err)
		}
	})
	if !valid {
		slog.Debug("relay to non-member dropped", "event", event, "conn", senderID, "target", targetID, "room", roomID)
		return opError(event, roomID, ErrInvalidTarget)
	}
	return nil
}
