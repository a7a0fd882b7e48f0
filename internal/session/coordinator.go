package session

import (
	"log/slog"
	"time"
)

// Coordinator is the single entry point the transport talks to. It wires the
// registry, directory, relay, broadcaster, arbiter and chat limiter together.
type Coordinator struct {
	registry    *Registry
	directory   *Directory
	broadcaster *Broadcaster
	relay       *Relay
	arbiter     *Arbiter
	limiter     *ChatLimiter
	now         func() time.Time
}

type options struct {
	elect        Elector
	chatInterval time.Duration
	now          func() time.Time
}

type Option func(*options)

// WithElector replaces the random host election.
func WithElector(e Elector) Option {
	return func(o *options) { o.elect = e }
}

func WithChatInterval(d time.Duration) Option {
	return func(o *options) { o.chatInterval = d }
}

// WithClock overrides time.Now for chat throttling and timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(opts ...Option) *Coordinator {
	o := options{
		elect:        RandomElector,
		chatInterval: DefaultChatInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	registry := NewRegistry()
	directory := NewDirectory(registry, o.elect)
	broadcaster := NewBroadcaster(registry, directory)
	directory.notify = broadcaster

	return &Coordinator{
		registry:    registry,
		directory:   directory,
		broadcaster: broadcaster,
		relay:       NewRelay(registry, directory),
		arbiter:     NewArbiter(directory, broadcaster),
		limiter:     NewChatLimiter(registry, o.chatInterval),
		now:         o.now,
	}
}

func (c *Coordinator) Registry() *Registry       { return c.registry }
func (c *Coordinator) Directory() *Directory     { return c.directory }
func (c *Coordinator) Broadcaster() *Broadcaster { return c.broadcaster }

// Connect registers a new connection. It is not in any room yet.
func (c *Coordinator) Connect(peer Peer) {
	c.registry.Register(peer)
}

// Disconnect releases everything the connection holds: its membership, its
// chat record and, through the directory, the host seat or the room itself.
func (c *Coordinator) Disconnect(connID string) {
	c.directory.Leave(connID)
	c.registry.Unregister(connID)
}

func (c *Coordinator) Join(connID, roomID, name string) (JoinOutcome, error) {
	return c.directory.Join(connID, roomID, name)
}

// Leave is a no-op for a connection that is not in a room.
func (c *Coordinator) Leave(connID string) {
	c.directory.Leave(connID)
}

func (c *Coordinator) RelayOffer(senderID, targetID string, offer any) error {
	return c.relay.RelayOffer(senderID, targetID, offer)
}

func (c *Coordinator) RelayAnswer(senderID, targetID string, answer any) error {
	return c.relay.RelayAnswer(senderID, targetID, answer)
}

func (c *Coordinator) RelayIceCandidate(senderID, targetID string, candidate any) error {
	return c.relay.RelayIceCandidate(senderID, targetID, candidate)
}

// Chat broadcasts text to the sender's room under its registered name.
// roomID may be empty; when set it must be the sender's room.
func (c *Coordinator) Chat(connID, roomID, text string) error {
	current, err := c.memberRoom(connID, roomID, OpChat)
	if err != nil {
		return err
	}

	now := c.now()
	if !c.limiter.AllowChat(connID, now) {
		return opError(OpChat, current, ErrRateLimited)
	}

	msg, err := ValidateChat(text)
	if err != nil {
		return opError(OpChat, current, err)
	}

	name, ok := c.directory.MemberName(current, connID)
	if !ok {
		return opError(OpChat, current, ErrNotInRoom)
	}
	c.broadcaster.BroadcastChat(current, name, msg, now)
	return nil
}

// HandRaise is dropped silently for non-members.
func (c *Coordinator) HandRaise(connID, roomID string, raised bool) {
	current, err := c.memberRoom(connID, roomID, EventHandRaise)
	if err != nil {
		slog.Debug("hand raise dropped", "conn", connID, "room", roomID, "error", err)
		return
	}
	name, ok := c.directory.MemberName(current, connID)
	if !ok {
		return
	}
	c.broadcaster.BroadcastHandRaise(current, connID, name, raised)
}

// ScreenShare is dropped silently for non-members.
func (c *Coordinator) ScreenShare(connID, roomID string, started bool) {
	current, err := c.memberRoom(connID, roomID, EventScreenShareStart)
	if err != nil {
		slog.Debug("screen share event dropped", "conn", connID, "room", roomID, "error", err)
		return
	}
	if started {
		c.broadcaster.BroadcastScreenShareStart(current, connID)
	} else {
		c.broadcaster.BroadcastScreenShareStop(current, connID)
	}
}

// MuteAll forwards a force-mute directive from the host to everyone else.
func (c *Coordinator) MuteAll(requesterID, roomID string) error {
	return c.arbiter.MuteAll(requesterID, c.resolveRoom(requesterID, roomID))
}

// Kick removes targetID from the room when requesterID is its host.
func (c *Coordinator) Kick(requesterID, roomID, targetID string) error {
	return c.arbiter.Kick(requesterID, c.resolveRoom(requesterID, roomID), targetID)
}

// Stats returns active rooms, joined members and registered connections.
func (c *Coordinator) Stats() (rooms, members, clients int) {
	rooms, members = c.directory.Stats()
	return rooms, members, c.registry.Len()
}

// Shutdown closes every registered connection. Their transports then
// disconnect through the normal path.
func (c *Coordinator) Shutdown() {
	peers := c.registry.Peers()
	for _, p := range peers {
		if err := p.Close(); err != nil {
			slog.Debug("close on shutdown", "conn", p.ID(), "error", err)
		}
	}
	slog.Info("coordinator closed connections", "count", len(peers))
}

// memberRoom returns the room connID is in. A non-empty roomID must match it.
func (c *Coordinator) memberRoom(connID, roomID, op string) (string, error) {
	p := c.registry.Lookup(connID)
	if p == nil {
		return "", opError(op, roomID, ErrUnknownConnection)
	}
	current := p.RoomID()
	if current == "" || (roomID != "" && roomID != current) {
		return "", opError(op, roomID, ErrNotInRoom)
	}
	return current, nil
}

// resolveRoom falls back to the requester's own room when roomID is empty.
func (c *Coordinator) resolveRoom(connID, roomID string) string {
	if roomID != "" {
		return roomID
	}
	if p := c.registry.Lookup(connID); p != nil {
		return p.RoomID()
	}
	return ""
}
