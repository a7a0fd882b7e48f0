package session

import (
	"log/slog"
	"slices"
)

// Arbiter gates host-only actions on the requester being the room's
// current host.
type Arbiter struct {
	directory   *Directory
	broadcaster *Broadcaster
}

func NewArbiter(directory *Directory, broadcaster *Broadcaster) *Arbiter {
	return &Arbiter{directory: directory, broadcaster: broadcaster}
}

// MuteAll asks every member except the host to turn off its own microphone.
// The check and the fan-out run under one room lock, so a host change cannot
// slip between them.
func (a *Arbiter) MuteAll(requesterID, roomID string) error {
	authorized := false
	a.directory.view(roomID, func(r *Room) {
		if r.host != requesterID {
			return
		}
		authorized = true
		ids := slices.DeleteFunc(r.memberIDs(), func(id string) bool { return id == requesterID })
		a.broadcaster.scatter(ids, EventForceMute, nil)
	})
	if !authorized {
		return opError(OpMuteAll, roomID, ErrNotHost)
	}

	slog.Info("host muted all", "room", roomID, "host", requesterID)
	return nil
}

// Kick removes targetID from the room. The host check is done by the
// directory under the same lock as the removal.
func (a *Arbiter) Kick(requesterID, roomID, targetID string) error {
	_, err := a.directory.Kick(requesterID, roomID, targetID)
	return err
}
