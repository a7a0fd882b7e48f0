package session

import (
	"log/slog"
	"slices"
	"time"
)

// Broadcaster fans events out to room members. Each recipient is delivered
// to independently: a failed send is logged and the rest still receive it.
type Broadcaster struct {
	registry  *Registry
	directory *Directory
}

func NewBroadcaster(registry *Registry, directory *Directory) *Broadcaster {
	return &Broadcaster{registry: registry, directory: directory}
}

// deliver sends one event to one connection.
func (b *Broadcaster) deliver(connID, event string, data any) bool {
	p := b.registry.Lookup(connID)
	if p == nil {
		slog.Warn("recipient not registered", "conn", connID, "event", event)
		return false
	}
	if err := p.peer.Send(event, data); err != nil {
		slog.Warn("delivery failed", "conn", connID, "event", event, "error", err)
		return false
	}
	return true
}

// scatter delivers to every id and returns how many sends succeeded.
func (b *Broadcaster) scatter(ids []string, event string, data any) int {
	delivered := 0
	for _, id := range ids {
		if b.deliver(id, event, data) {
			delivered++
		}
	}
	if failed := len(ids) - delivered; failed > 0 {
		slog.Warn("broadcast partially failed", "event", event, "recipients", len(ids), "failed", failed)
	}
	return delivered
}

// toRoom runs scatter over the current members of roomID, minus exclude.
func (b *Broadcaster) toRoom(roomID, exclude, event string, data any) bool {
	return b.directory.view(roomID, func(r *Room) {
		ids := r.memberIDs()
		if exclude != "" {
			ids = slices.DeleteFunc(ids, func(id string) bool { return id == exclude })
		}
		b.scatter(ids, event, data)
	})
}

// BroadcastMembership sends the full member map to every member.
func (b *Broadcaster) BroadcastMembership(roomID string) bool {
	return b.directory.view(roomID, func(r *Room) {
		b.scatter(r.memberIDs(), EventRoomUsers, r.snapshot())
	})
}

// BroadcastChat sends a chat line to every member, the sender included.
func (b *Broadcaster) BroadcastChat(roomID, senderName, text string, at time.Time) bool {
	return b.toRoom(roomID, "", EventChatMessage, ChatMessage{
		Message: text,
		Name:    senderName,
		Time:    at.UnixMilli(),
	})
}

func (b *Broadcaster) BroadcastHandRaise(roomID, connID, displayName string, raised bool) bool {
	return b.toRoom(roomID, "", EventHandRaise, HandRaise{
		SocketID: connID,
		Username: displayName,
		Raised:   raised,
	})
}

func (b *Broadcaster) BroadcastScreenShareStart(roomID, connID string) bool {
	return b.toRoom(roomID, "", EventScreenShareStart, ScreenShare{SocketID: connID})
}

func (b *Broadcaster) BroadcastScreenShareStop(roomID, connID string) bool {
	return b.toRoom(roomID, "", EventScreenShareStop, ScreenShare{SocketID: connID})
}

// NotifyHost tells every member who the host is.
func (b *Broadcaster) NotifyHost(roomID, hostID string) bool {
	return b.toRoom(roomID, "", EventRoomHost, RoomHost{HostID: hostID})
}

func (b *Broadcaster) joined(out JoinOutcome) {
	b.deliver(out.ConnID, EventExistingUsers, out.Existing)

	others := sortedIDs(out.Existing)
	b.scatter(others, EventUserJoined, UserJoined{SocketID: out.ConnID, Name: out.Name})

	everyone := sortedIDs(out.Members)
	b.scatter(everyone, EventRoomUsers, out.Members)
	b.scatter(everyone, EventRoomHost, RoomHost{HostID: out.Host})
}

func (b *Broadcaster) left(out LeaveOutcome) {
	if out.Kicked {
		b.deliver(out.ConnID, EventKicked, nil)
	}

	remaining := sortedIDs(out.Members)
	if len(remaining) == 0 {
		return
	}
	b.scatter(remaining, EventUserLeft, out.ConnID)
	b.scatter(remaining, EventRoomUsers, out.Members)
	if out.HostChanged {
		b.scatter(remaining, EventRoomHost, RoomHost{HostID: out.Host})
	}
}

func sortedIDs(m Members) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
