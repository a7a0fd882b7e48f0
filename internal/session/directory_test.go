package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	event string
	data  any
}

type mockPeer struct {
	id      string
	mu      sync.Mutex
	frames  []frame
	sendErr error
	closed  bool
}

func (m *mockPeer) ID() string { return m.id }

func (m *mockPeer) Send(event string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, frame{event: event, data: data})
	return nil
}

func (m *mockPeer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockPeer) events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.frames))
	for _, f := range m.frames {
		out = append(out, f.event)
	}
	return out
}

// last returns the payload of the most recent frame with the given event.
func (m *mockPeer) last(event string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.frames) - 1; i >= 0; i-- {
		if m.frames[i].event == event {
			return m.frames[i].data, true
		}
	}
	return nil, false
}

func (m *mockPeer) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
}

func newTestCoordinator(t *testing.T, ids ...string) (*Coordinator, map[string]*mockPeer) {
	t.Helper()
	c := New(WithElector(FirstElector))
	peers := make(map[string]*mockPeer, len(ids))
	for _, id := range ids {
		p := &mockPeer{id: id}
		c.Connect(p)
		peers[id] = p
	}
	return c, peers
}

func resetAll(peers map[string]*mockPeer) {
	for _, p := range peers {
		p.reset()
	}
}

// requireInvariants checks that every listed room is non-empty and that its
// host is one of its members.
func requireInvariants(t *testing.T, d *Directory) {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, r := range d.rooms {
		r.mu.RLock()
		require.NotEmpty(t, r.members, "room %s listed while empty", id)
		_, ok := r.members[r.host]
		require.True(t, ok, "room %s host %q is not a member", id, r.host)
		require.False(t, r.closed, "room %s listed while closed", id)
		r.mu.RUnlock()
	}
}

func TestDirectory_JoinCreatesRoom(t *testing.T) {
	c, peers := newTestCoordinator(t, "A")

	out, err := c.Join("A", "123456", "Alice")
	require.NoError(t, err)

	assert.True(t, out.Created)
	assert.Equal(t, "A", out.Host)
	assert.Empty(t, out.Existing)
	assert.Equal(t, Members{"A": "Alice"}, out.Members)

	assert.Equal(t, []string{EventExistingUsers, EventRoomUsers, EventRoomHost}, peers["A"].events())
	existing, _ := peers["A"].last(EventExistingUsers)
	assert.Empty(t, existing)
	host, _ := peers["A"].last(EventRoomHost)
	assert.Equal(t, RoomHost{HostID: "A"}, host)

	assert.True(t, c.Directory().Exists("123456"))
	requireInvariants(t, c.Directory())
}

func TestDirectory_SecondJoinNotifiesEveryone(t *testing.T) {
	c, peers := newTestCoordinator(t, "A", "B")

	_, err := c.Join("A", "123456", "Alice")
	require.NoError(t, err)
	resetAll(peers)

	out, err := c.Join("B", "123456", "Bob")
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, Members{"A": "Alice"}, out.Existing)

	assert.Equal(t, []string{EventExistingUsers, EventRoomUsers, EventRoomHost}, peers["B"].events())
	assert.Equal(t, []string{EventUserJoined, EventRoomUsers, EventRoomHost}, peers["A"].events())

	existing, _ := peers["B"].last(EventExistingUsers)
	assert.Equal(t, Members{"A": "Alice"}, existing)

	joined, _ := peers["A"].last(EventUserJoined)
	assert.Equal(t, UserJoined{SocketID: "B", Name: "Bob"}, joined)

	for _, id := range []string{"A", "B"} {
		users, _ := peers[id].last(EventRoomUsers)
		assert.Equal(t, Members{"A": "Alice", "B": "Bob"}, users, id)
		host, _ := peers[id].last(EventRoomHost)
		assert.Equal(t, RoomHost{HostID: "A"}, host, id)
	}
	requireInvariants(t, c.Directory())
}

func TestDirectory_JoinValidation(t *testing.T) {
	tests := []struct {
		name    string
		roomID  string
		display string
		wantErr error
	}{
		{name: "five digits", roomID: "12345", display: "Carol", wantErr: ErrInvalidRoomID},
		{name: "seven digits", roomID: "1234567", display: "Carol", wantErr: ErrInvalidRoomID},
		{name: "letters", roomID: "abcdef", display: "Carol", wantErr: ErrInvalidRoomID},
		{name: "mixed", roomID: "12345a", display: "Carol", wantErr: ErrInvalidRoomID},
		{name: "empty", roomID: "", display: "Carol", wantErr: ErrInvalidRoomID},
		{name: "padded", roomID: " 123456", display: "Carol", wantErr: ErrInvalidRoomID},
		{name: "non-ascii digits", roomID: "١٢٣٤٥٦", display: "Carol", wantErr: ErrInvalidRoomID},
		{name: "duplicate name", roomID: "123456", display: "Alice", wantErr: ErrNameTaken},
		{name: "duplicate after trim", roomID: "123456", display: "  Alice  ", wantErr: ErrNameTaken},
		{name: "different case is distinct", roomID: "123456", display: "alice"},
		{name: "same name other room", roomID: "654321", display: "Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, peers := newTestCoordinator(t, "A", "B")
			_, err := c.Join("A", "123456", "Alice")
			require.NoError(t, err)
			resetAll(peers)

			_, err = c.Join("B", tt.roomID, tt.display)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, peers["A"].events())
			assert.Empty(t, peers["B"].events())
			assert.Equal(t, Members{"A": "Alice"}, c.Directory().Members("123456"))
			assert.Empty(t, c.Registry().Lookup("B").RoomID())
			requireInvariants(t, c.Directory())
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"":        DefaultName,
		"   ":     DefaultName,
		"\tBob\n": "Bob",
		"Ann Lee": "Ann Lee",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), "%q", in)
	}
}

func TestDirectory_BlankNamesShareTheDefault(t *testing.T) {
	c, _ := newTestCoordinator(t, "A", "B")

	out, err := c.Join("A", "123456", "  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultName, out.Name)

	_, err = c.Join("B", "123456", "")
	assert.ErrorIs(t, err, ErrNameTaken)
}

func TestDirectory_AlreadyInRoom(t *testing.T) {
	c, _ := newTestCoordinator(t, "A")

	_, err := c.Join("A", "123456", "Alice")
	require.NoError(t, err)

	_, err = c.Join("A", "654321", "Alice")
	require.ErrorIs(t, err, ErrAlreadyInRoom)
	assert.False(t, c.Directory().Exists("654321"))
}

func TestDirectory_UnknownConnection(t *testing.T) {
	c, _ := newTestCoordinator(t)

	_, err := c.Join("ghost", "123456", "Casper")
	require.ErrorIs(t, err, ErrUnknownConnection)
	assert.False(t, c.Directory().Exists("123456"))
}

func TestDirectory_HostDisconnectReassigns(t *testing.T) {
	c, peers := newTestCoordinator(t, "A", "B")
	_, err := c.Join("A", "123456", "Alice")
	require.NoError(t, err)
	_, err = c.Join("B", "123456", "Bob")
	require.NoError(t, err)
	resetAll(peers)

	c.Disconnect("A")

	assert.Equal(t, []string{EventUserLeft, EventRoomUsers, EventRoomHost}, peers["B"].events())
	left, _ := peers["B"].last(EventUserLeft)
	assert.Equal(t, "A", left)
	users, _ := peers["B"].last(EventRoomUsers)
	assert.Equal(t, Members{"B": "Bob"}, users)
	host, _ := peers["B"].last(EventRoomHost)
	assert.Equal(t, RoomHost{HostID: "B"}, host)

	assert.Empty(t, peers["A"].events())
	assert.Nil(t, c.Registry().Lookup("A"))

	got, ok := c.Directory().CurrentHost("123456")
	require.True(t, ok)
	assert.Equal(t, "B", got)
	requireInvariants(t, c.Directory())
}

func TestDirectory_NonHostLeaveKeepsHost(t *testing.T) {
	c, peers := newTestCoordinator(t, "A", "B", "C")
	for _, id := range []string{"A", "B", "C"} {
		_, err := c.Join(id, "123456", "user-"+id)
		require.NoError(t, err)
	}
	resetAll(peers)

	leaver := "B"
	c.Leave(leaver)

	for id, p := range peers {
		if id == leaver {
			assert.Empty(t, p.events())
			continue
		}
		assert.Equal(t, []string{EventUserLeft, EventRoomUsers}, p.events(), id)
	}
	got, _ := c.Directory().CurrentHost("123456")
	assert.Equal(t, "A", got)
	requireInvariants(t, c.Directory())
}

func TestDirectory_LastLeaveDeletesRoom(t *testing.T) {
	c, peers := newTestCoordinator(t, "A", "B")
	_, err := c.Join("A", "123456", "Alice")
	require.NoError(t, err)

	out, ok := c.Directory().Leave("A")
	require.True(t, ok)
	assert.True(t, out.Closed)
	assert.Empty(t, out.Host)
	assert.False(t, c.Directory().Exists("123456"))

	rooms, members := c.Directory().Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, members)

	resetAll(peers)
	fresh, err := c.Join("B", "123456", "Alice")
	require.NoError(t, err)
	assert.True(t, fresh.Created)
	assert.Equal(t, "B", fresh.Host)
	assert.Empty(t, fresh.Existing)
	assert.Empty(t, peers["A"].events())
}

func TestDirectory_LeaveIsIdempotent(t *testing.T) {
	c, peers := newTestCoordinator(t, "A", "B")
	_, err := c.Join("A", "123456", "Alice")
	require.NoError(t, err)
	resetAll(peers)

	_, ok := c.Directory().Leave("B")
	assert.False(t, ok)
	_, ok = c.Directory().Leave("nobody")
	assert.False(t, ok)

	c.Leave("A")
	c.Leave("A")
	assert.Empty(t, peers["B"].events())
	assert.False(t, c.Directory().Exists("123456"))
}

func TestDirectory_Kick(t *testing.T) {
	setup := func(t *testing.T) (*Coordinator, map[string]*mockPeer) {
		c, peers := newTestCoordinator(t, "A", "B", "C")
		_, err := c.Join("A", "123456", "Alice")
		require.NoError(t, err)
		_, err = c.Join("B", "123456", "Bob")
		require.NoError(t, err)
		resetAll(peers)
		return c, peers
	}

	t.Run("non host is rejected", func(t *testing.T) {
		c, peers := setup(t)
		err := c.Kick("B", "123456", "A")
		require.ErrorIs(t, err, ErrNotHost)
		assert.Equal(t, Members{"A": "Alice", "B": "Bob"}, c.Directory().Members("123456"))
		assert.Empty(t, peers["A"].events())
		assert.Empty(t, peers["B"].events())
	})

	t.Run("outsider is rejected", func(t *testing.T) {
		c, _ := setup(t)
		err := c.Kick("C", "123456", "B")
		require.ErrorIs(t, err, ErrNotHost)
		assert.True(t, c.Directory().IsMember("123456", "B"))
	})

	t.Run("missing room", func(t *testing.T) {
		c, _ := setup(t)
		err := c.Kick("A", "999999", "B")
		require.ErrorIs(t, err, ErrNotHost)
	})

	t.Run("unknown target", func(t *testing.T) {
		c, _ := setup(t)
		err := c.Kick("A", "123456", "C")
		require.ErrorIs(t, err, ErrUnknownTarget)
		assert.Len(t, c.Directory().Members("123456"), 2)
	})

	t.Run("host kicks member", func(t *testing.T) {
		c, peers := setup(t)
		require.NoError(t, c.Kick("A", "123456", "B"))

		assert.Equal(t, []string{EventKicked}, peers["B"].events())
		assert.Equal(t, []string{EventUserLeft, EventRoomUsers}, peers["A"].events())
		left, _ := peers["A"].last(EventUserLeft)
		assert.Equal(t, "B", left)
		users, _ := peers["A"].last(EventRoomUsers)
		assert.Equal(t, Members{"A": "Alice"}, users)

		assert.Empty(t, c.Registry().Lookup("B").RoomID())
		requireInvariants(t, c.Directory())

		// The kicked connection stays connected and may join again.
		_, err := c.Join("B", "123456", "Bob")
		require.NoError(t, err)
	})

	t.Run("host kicks itself", func(t *testing.T) {
		c, peers := setup(t)
		require.NoError(t, c.Kick("A", "123456", "A"))

		assert.Equal(t, []string{EventKicked}, peers["A"].events())
		assert.Equal(t, []string{EventUserLeft, EventRoomUsers, EventRoomHost}, peers["B"].events())
		host, _ := c.Directory().CurrentHost("123456")
		assert.Equal(t, "B", host)
		requireInvariants(t, c.Directory())
	})

	t.Run("empty room after kick is deleted", func(t *testing.T) {
		c, _ := newTestCoordinator(t, "A")
		_, err := c.Join("A", "123456", "Alice")
		require.NoError(t, err)
		require.NoError(t, c.Kick("A", "123456", "A"))
		assert.False(t, c.Directory().Exists("123456"))
	})
}

func TestDirectory_ElectorIsUsed(t *testing.T) {
	var seen []string
	last := func(members []string) string {
		seen = append([]string(nil), members...)
		return members[len(members)-1]
	}
	c := New(WithElector(last))
	for _, id := range []string{"A", "B", "C"} {
		c.Connect(&mockPeer{id: id})
		_, err := c.Join(id, "123456", "user-"+id)
		require.NoError(t, err)
	}

	c.Leave("A")

	assert.Equal(t, []string{"B", "C"}, seen)
	host, _ := c.Directory().CurrentHost("123456")
	assert.Equal(t, "C", host)
}

func TestDirectory_BadElectorFallsBackToMember(t *testing.T) {
	c := New(WithElector(func([]string) string { return "stranger" }))
	for _, id := range []string{"A", "B"} {
		c.Connect(&mockPeer{id: id})
		_, err := c.Join(id, "123456", "user-"+id)
		require.NoError(t, err)
	}

	c.Leave("A")

	host, _ := c.Directory().CurrentHost("123456")
	assert.Equal(t, "B", host)
	requireInvariants(t, c.Directory())
}

func TestDirectory_ConcurrentChurn(t *testing.T) {
	c := New()
	const (
		conns  = 48
		rounds = 25
	)
	rooms := []string{"100000", "200000", "300000"}

	var wg sync.WaitGroup
	for i := range conns {
		id := fmt.Sprintf("conn-%02d", i)
		c.Connect(&mockPeer{id: id})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range rounds {
				roomID := rooms[(i+r)%len(rooms)]
				if _, err := c.Join(id, roomID, id); err != nil {
					t.Errorf("join %s %s: %v", id, roomID, err)
					return
				}
				if r%3 == 0 {
					_ = c.MuteAll(id, roomID)
				}
				c.Leave(id)
			}
		}()
	}
	wg.Wait()

	requireInvariants(t, c.Directory())
	roomCount, members := c.Directory().Stats()
	assert.Zero(t, roomCount)
	assert.Zero(t, members)
}

func TestDirectory_ConcurrentJoinsKeepNamesUnique(t *testing.T) {
	c := New()
	const conns = 32

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := range conns {
		id := fmt.Sprintf("conn-%02d", i)
		c.Connect(&mockPeer{id: id})
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Join(id, "123456", "Same Name")
			if err == nil {
				mu.Lock()
				winners = append(winners, id)
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrNameTaken)
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, Members{winners[0]: "Same Name"}, c.Directory().Members("123456"))
	host, _ := c.Directory().CurrentHost("123456")
	assert.Equal(t, winners[0], host)
}

func TestDirectory_KickRacingDisconnect(t *testing.T) {
	for i := range 50 {
		c, _ := newTestCoordinator(t, "host", "target", "other")
		_, err := c.Join("host", "123456", "Host")
		require.NoError(t, err)
		_, err = c.Join("target", "123456", "Target")
		require.NoError(t, err)
		_, err = c.Join("other", "123456", "Other")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(3)
		go func() {
			defer wg.Done()
			err := c.Kick("host", "123456", "target")
			if err != nil {
				assert.True(t, isAny(err, ErrUnknownTarget, ErrNotHost), "round %d: %v", i, err)
			}
		}()
		go func() {
			defer wg.Done()
			c.Disconnect("target")
		}()
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				c.Disconnect("host")
			}
		}()
		wg.Wait()

		requireInvariants(t, c.Directory())
		assert.False(t, c.Directory().IsMember("123456", "target"))
	}
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestDirectory_RoomBeingCreatedIsNotListed(t *testing.T) {
	c, peers := newTestCoordinator(t, "A")
	d := c.Directory()

	// A first join that has not committed yet leaves an empty room behind.
	r := d.acquire("123456")
	assert.False(t, d.Exists("123456"))
	rooms, members := d.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, members)

	_, err := c.Join("A", "123456", "Alice")
	require.NoError(t, err)
	assert.Same(t, r, d.lookup("123456"))
	assert.True(t, d.Exists("123456"))
	rooms, members = d.Stats()
	assert.Equal(t, 1, rooms)
	assert.Equal(t, 1, members)
	requireInvariants(t, d)
	resetAll(peers)
}
