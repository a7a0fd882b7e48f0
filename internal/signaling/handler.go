package signaling

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/BioHazard786/medzoom/internal/session"
	"github.com/BioHazard786/medzoom/internal/wire"
)

const (
	malformedMessage = "Malformed message"
	internalMessage  = "Internal server error"
)

// Handler dispatches decoded client events into the coordinator and answers
// failures with an error event to the sender only.
type Handler struct {
	coord *session.Coordinator
}

func NewHandler(coord *session.Coordinator) *Handler {
	return &Handler{coord: coord}
}

func (h *Handler) Connect(peer session.Peer) { h.coord.Connect(peer) }

func (h *Handler) Disconnect(connID string) { h.coord.Disconnect(connID) }

// Malformed answers a frame that could not be decoded.
func (h *Handler) Malformed(peer session.Peer, err error) {
	slog.Warn("malformed frame", "conn", peer.ID(), "error", err)
	h.reply(peer, malformedMessage)
}

// Handle runs one inbound event. A panic is logged and reported to the sender;
// the connection stays open.
func (h *Handler) Handle(peer session.Peer, env *wire.Envelope) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("event handler panicked",
				"conn", peer.ID(), "event", env.Event, "panic", r, "stack", string(debug.Stack()))
			h.reply(peer, internalMessage)
		}
	}()

	if err := h.dispatch(peer.ID(), env); err != nil {
		h.fail(peer, env.Event, err)
	}
}

func (h *Handler) dispatch(connID string, env *wire.Envelope) error {
	switch env.Event {
	case session.EventJoinRoom:
		var req JoinRequest
		if err := bind(env, &req); err != nil {
			return err
		}
		_, err := h.coord.Join(connID, req.RoomID, req.Name)
		return err

	case session.EventOffer:
		var req OfferRequest
		if err := bind(env, &req); err != nil {
			return err
		}
		return h.coord.RelayOffer(connID, req.TargetID, req.Offer)

	case session.EventAnswer:
		var req AnswerRequest
		if err := bind(env, &req); err != nil {
			return err
		}
		return h.coord.RelayAnswer(connID, req.TargetID, req.Answer)

	case session.EventIceCandidate:
		var req CandidateRequest
		if err := bind(env, &req); err != nil {
			return err
		}
		return h.coord.RelayIceCandidate(connID, req.TargetID, req.Candidate)

	case session.EventChatMessage:
		var req ChatRequest
		if err := bind(env, &req); err != nil {
			return err
		}
		return h.coord.Chat(connID, req.RoomID, req.Message)

	case session.EventHandRaise:
		var req HandRaiseRequest
		if err := bind(env, &req); err != nil {
			return err
		}
		h.coord.HandRaise(connID, req.RoomID, req.Raised)

	case session.EventScreenShareStart, session.EventScreenShareStop:
		var req RoomRequest
		if err := bind(env, &req); err != nil {
			return err
		}
		h.coord.ScreenShare(connID, req.RoomID, env.Event == session.EventScreenShareStart)

	case session.EventHostMuteAll:
		var req RoomRequest
		if err := bind(env, &req); err != nil {
			return err
		}
		return h.coord.MuteAll(connID, req.RoomID)

	case session.EventHostKickUser:
		var req KickRequest
		if err := bind(env, &req); err != nil {
			return err
		}
		return h.coord.Kick(connID, req.RoomID, req.TargetID)

	case session.EventLeaveRoom:
		h.coord.Leave(connID)

	default:
		slog.Debug("unknown event ignored", "conn", connID, "event", env.Event)
	}
	return nil
}

// payloadError marks a frame whose data did not match the event's shape.
type payloadError struct {
	event string
	err   error
}

func (e *payloadError) Error() string { return fmt.Sprintf("%s payload: %v", e.event, e.err) }
func (e *payloadError) Unwrap() error { return e.err }

func bind(env *wire.Envelope, v any) error {
	if err := env.Bind(v); err != nil {
		return &payloadError{event: env.Event, err: err}
	}
	return nil
}

func (h *Handler) fail(peer session.Peer, event string, err error) {
	var pe *payloadError
	if errors.As(err, &pe) {
		h.Malformed(peer, err)
		return
	}
	slog.Debug("request rejected", "conn", peer.ID(), "event", event, "error", err)
	h.reply(peer, session.UserMessage(err))
}

func (h *Handler) reply(peer session.Peer, message string) {
	if err := peer.Send(session.EventError, session.ErrorNotice{Message: message}); err != nil {
		slog.Debug("error notice not delivered", "conn", peer.ID(), "error", err)
	}
}
