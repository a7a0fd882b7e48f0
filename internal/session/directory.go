package session

import (
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// DefaultName replaces a display name that is blank after trimming.
const DefaultName = "Guest"

var roomIDPattern = regexp.MustCompile(`^[0-9]{6}$`)

// ValidRoomID reports whether id is exactly six decimal digits.
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// NormalizeName trims name and falls back to DefaultName when nothing is left.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}
	return name
}

// Room is one meeting. All fields are guarded by mu; a closed room has been
// removed from the directory and must not be mutated again.
type Room struct {
	id string

	mu      sync.RWMutex
	members Members
	host    string
	closed  bool
}

func newRoom(id string) *Room {
	return &Room{id: id, members: make(Members)}
}

func (r *Room) snapshot() Members {
	out := make(Members, len(r.members))
	for id, name := range r.members {
		out[id] = name
	}
	return out
}

func (r *Room) memberIDs() []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *Room) nameTaken(name string) bool {
	for _, existing := range r.members {
		if existing == name {
			return true
		}
	}
	return false
}

// JoinOutcome describes a committed join.
type JoinOutcome struct {
	RoomID   string
	ConnID   string
	Name     string
	Existing Members // members other than the joiner
	Members  Members // everyone, joiner included
	Host     string
	Created  bool
}

// LeaveOutcome describes a committed leave, disconnect or kick.
type LeaveOutcome struct {
	RoomID      string
	ConnID      string
	Name        string
	Members     Members // remaining members
	Host        string  // "" once the room is closed
	HostChanged bool
	Closed      bool
	Kicked      bool
}

// notifier is told about every committed change while the room lock is still
// held, so notifications leave in the same order the changes were applied.
type notifier interface {
	joined(out JoinOutcome)
	left(out LeaveOutcome)
}

type nopNotifier struct{}

func (nopNotifier) joined(JoinOutcome) {}
func (nopNotifier) left(LeaveOutcome)  {}

// Directory owns the set of active rooms.
//
// Lock order is room.mu before Directory.mu; Directory.mu is never held
// while waiting for a room lock.
type Directory struct {
	mu    sync.Mutex
	rooms map[string]*Room

	registry *Registry
	elect    Elector
	notify   notifier
}

func NewDirectory(registry *Registry, elect Elector) *Directory {
	if elect == nil {
		elect = RandomElector
	}
	return &Directory{
		rooms:    make(map[string]*Room),
		registry: registry,
		elect:    elect,
		notify:   nopNotifier{},
	}
}

// acquire returns the room for id, creating an empty one if needed.
func (d *Directory) acquire(id string) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.rooms[id]
	if !ok {
		r = newRoom(id)
		d.rooms[id] = r
	}
	return r
}

func (d *Directory) lookup(id string) *Room {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rooms[id]
}

// discard closes r and drops it from the directory. r.mu must be held.
func (d *Directory) discard(r *Room) {
	r.closed = true
	r.host = ""

	d.mu.Lock()
	if d.rooms[r.id] == r {
		delete(d.rooms, r.id)
	}
	d.mu.Unlock()

	slog.Info("room deleted", "room", r.id)
}

// Join adds connID to roomID under name, creating the room if it does not
// exist yet. The creator of a room becomes its host.
func (d *Directory) Join(connID, roomID, name string) (JoinOutcome, error) {
	if !ValidRoomID(roomID) {
		return JoinOutcome{}, opError(OpJoin, roomID, ErrInvalidRoomID)
	}

	p := d.registry.Lookup(connID)
	if p == nil {
		return JoinOutcome{}, opError(OpJoin, roomID, ErrUnknownConnection)
	}
	if current := p.RoomID(); current != "" {
		return JoinOutcome{}, opError(OpJoin, current, ErrAlreadyInRoom)
	}

	name = NormalizeName(name)

	for {
		out, ok, err := d.joinRoom(d.acquire(roomID), p, name)
		if ok {
			return out, err
		}
	}
}

// joinRoom reports ok=false when r was closed before the lock was taken.
func (d *Directory) joinRoom(r *Room, p *Participant, name string) (out JoinOutcome, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		// Lost a race with the last member leaving; the next acquire
		// creates a fresh room.
		return JoinOutcome{}, false, nil
	}
	out, err = d.joinLocked(r, p, name)
	return out, true, err
}

func (d *Directory) joinLocked(r *Room, p *Participant, name string) (JoinOutcome, error) {
	if r.nameTaken(name) {
		if len(r.members) == 0 {
			d.discard(r)
		}
		return JoinOutcome{}, opError(OpJoin, r.id, ErrNameTaken)
	}

	created := len(r.members) == 0
	existing := r.snapshot()

	r.members[p.ID()] = name
	if created {
		r.host = p.ID()
	}
	p.setRoom(r.id)

	out := JoinOutcome{
		RoomID:   r.id,
		ConnID:   p.ID(),
		Name:     name,
		Existing: existing,
		Members:  r.snapshot(),
		Host:     r.host,
		Created:  created,
	}

	if created {
		slog.Info("room created", "room", r.id, "host", p.ID())
	}
	slog.Info("user joined room", "room", r.id, "conn", p.ID(), "name", name, "members", len(r.members))

	d.notify.joined(out)
	return out, nil
}

// Leave removes connID from its room. It reports false when the connection
// was not in a room.
func (d *Directory) Leave(connID string) (LeaveOutcome, bool) {
	p := d.registry.Lookup(connID)
	if p == nil {
		return LeaveOutcome{}, false
	}

	for {
		roomID := p.RoomID()
		if roomID == "" {
			return LeaveOutcome{}, false
		}

		r := d.lookup(roomID)
		if r == nil {
			if p.RoomID() != roomID {
				continue
			}
			slog.Error("connection points at a missing room", "conn", connID, "room", roomID)
			p.setRoom("")
			return LeaveOutcome{}, false
		}

		out, left, retry := d.leaveRoom(r, p)
		if !retry {
			return out, left
		}
	}
}

// leaveRoom reports retry when p was moved out of r concurrently.
func (d *Directory) leaveRoom(r *Room, p *Participant) (out LeaveOutcome, left, retry bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connID := p.ID()
	if _, ok := r.members[connID]; !ok || r.closed {
		if p.RoomID() != r.id {
			// Removed concurrently (kicked); re-read the room id.
			return LeaveOutcome{}, false, true
		}
		slog.Error("connection not listed in its room", "conn", connID, "room", r.id)
		p.setRoom("")
		return LeaveOutcome{}, false, false
	}
	return d.removeLocked(r, connID, false), true, false
}

// Kick removes targetID from roomID on behalf of requesterID, who must be the
// room's current host.
func (d *Directory) Kick(requesterID, roomID, targetID string) (LeaveOutcome, error) {
	r := d.lookup(roomID)
	if r == nil {
		return LeaveOutcome{}, opError(OpKick, roomID, ErrNotHost)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || r.host != requesterID {
		return LeaveOutcome{}, opError(OpKick, roomID, ErrNotHost)
	}
	if _, ok := r.members[targetID]; !ok {
		return LeaveOutcome{}, opError(OpKick, roomID, ErrUnknownTarget)
	}

	slog.Info("user kicked", "room", roomID, "host", requesterID, "target", targetID)
	return d.removeLocked(r, targetID, true), nil
}

// removeLocked takes connID out of r, re-elects the host or deletes the room
// as needed, and emits the notification. r.mu must be held.
func (d *Directory) removeLocked(r *Room, connID string, kicked bool) LeaveOutcome {
	name := r.members[connID]
	delete(r.members, connID)

	if p := d.registry.Lookup(connID); p != nil {
		p.setRoom("")
	}

	out := LeaveOutcome{
		RoomID: r.id,
		ConnID: connID,
		Name:   name,
		Kicked: kicked,
	}

	switch {
	case len(r.members) == 0:
		d.discard(r)
		out.Closed = true
	case r.host == connID:
		r.host = d.electLocked(r)
		out.HostChanged = true
		slog.Info("host reassigned", "room", r.id, "host", r.host)
	}

	out.Host = r.host
	out.Members = r.snapshot()

	slog.Info("user left room", "room", r.id, "conn", connID, "name", name, "members", len(r.members))

	d.notify.left(out)
	return out
}

func (d *Directory) electLocked(r *Room) string {
	ids := r.memberIDs()
	host := d.elect(ids)
	if _, ok := r.members[host]; !ok {
		slog.Error("elector returned a non-member, using first member", "room", r.id, "picked", host)
		host = ids[0]
	}
	return host
}

// view runs fn with roomID read-locked. It reports false when the room does
// not exist.
func (d *Directory) view(roomID string, fn func(r *Room)) bool {
	r := d.lookup(roomID)
	if r == nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return false
	}
	fn(r)
	return true
}

// CurrentHost returns the host of roomID.
func (d *Directory) CurrentHost(roomID string) (string, bool) {
	var host string
	ok := d.view(roomID, func(r *Room) { host = r.host })
	return host, ok
}

// IsMember reports whether connID is currently a member of roomID.
func (d *Directory) IsMember(roomID, connID string) bool {
	var member bool
	d.view(roomID, func(r *Room) { _, member = r.members[connID] })
	return member
}

// MemberName returns the display name connID joined roomID with.
func (d *Directory) MemberName(roomID, connID string) (string, bool) {
	var (
		name   string
		member bool
	)
	d.view(roomID, func(r *Room) { name, member = r.members[connID] })
	return name, member
}

// Members returns a snapshot of roomID's member map, or nil.
func (d *Directory) Members(roomID string) Members {
	var out Members
	d.view(roomID, func(r *Room) { out = r.snapshot() })
	return out
}

// Exists reports whether roomID has at least one member. A room still being
// created by its first join does not count.
func (d *Directory) Exists(roomID string) bool {
	var ok bool
	d.view(roomID, func(r *Room) { ok = len(r.members) > 0 })
	return ok
}

// Stats returns the number of rooms and the number of joined members.
func (d *Directory) Stats() (rooms, members int) {
	d.mu.Lock()
	all := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		all = append(all, r)
	}
	d.mu.Unlock()

	for _, r := range all {
		r.mu.RLock()
		if !r.closed && len(r.members) > 0 {
			rooms++
			members += len(r.members)
		}
		r.mu.RUnlock()
	}
	return rooms, members
}
