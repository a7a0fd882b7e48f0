package session

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Peer is the transport side of one live connection. Send must not block.
type Peer interface {
	ID() string
	Send(event string, data any) error
	Close() error
}

// Participant is the registry entry for a connection: the room it belongs to
// and its chat throttle. Both are cleared together when it leaves a room.
type Participant struct {
	peer Peer

	mu     sync.Mutex
	roomID string
	chat   *rate.Limiter
}

func (p *Participant) ID() string { return p.peer.ID() }

// RoomID returns the room the connection is in, or "" before a join.
func (p *Participant) RoomID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roomID
}

// setRoom is called with the room's lock held.
func (p *Participant) setRoom(roomID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roomID = roomID
	if roomID == "" {
		p.chat = nil
	}
}

func (p *Participant) allowChat(now time.Time, interval time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chat == nil {
		p.chat = rate.NewLimiter(rate.Every(interval), 1)
	}
	return p.chat.AllowN(now, 1)
}

func (p *Participant) hasChatRecord() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chat != nil
}

// Registry indexes live connections by id.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*Participant
}

func NewRegistry() *Registry {
	return &Registry{participants: make(map[string]*Participant)}
}

// Register adds a connection. A second registration with the same id
// replaces the first.
func (r *Registry) Register(peer Peer) *Participant {
	p := &Participant{peer: peer}

	r.mu.Lock()
	if _, exists := r.participants[peer.ID()]; exists {
		slog.Warn("connection id registered twice", "conn", peer.ID())
	}
	r.participants[peer.ID()] = p
	count := len(r.participants)
	r.mu.Unlock()

	slog.Debug("connection registered", "conn", peer.ID(), "clients", count)
	return p
}

// Unregister removes a connection and returns its entry, or nil.
func (r *Registry) Unregister(id string) *Participant {
	r.mu.Lock()
	p, ok := r.participants[id]
	if ok {
		delete(r.participants, id)
	}
	count := len(r.participants)
	r.mu.Unlock()

	if ok {
		slog.Debug("connection unregistered", "conn", id, "clients", count)
	}
	return p
}

// Lookup returns the entry for id, or nil.
func (r *Registry) Lookup(id string) *Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participants[id]
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// Peers returns a snapshot of every registered peer.
func (r *Registry) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]Peer, 0, len(r.participants))
	for _, p := range r.participants {
		peers = append(peers, p.peer)
	}
	return peers
}
