package signaling

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/medzoom/internal/wire"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	DefaultSendBuffer     = 256
	DefaultMaxMessageSize = 64 * 1024 // enough for SDP with many candidates
)

var (
	ErrClosed        = errors.New("connection closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// ClientOptions tunes a connection's buffers. Zero values use the defaults.
type ClientOptions struct {
	SendBuffer     int
	MaxMessageSize int64
}

// Client is one websocket connection. It satisfies session.Peer: Send never
// blocks, so the coordinator can call it while holding a room lock.
type Client struct {
	id      string
	conn    *websocket.Conn
	codec   wire.Codec
	handler *Handler
	maxSize int64

	// send holds encoded frames for writePump.
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(id string, conn *websocket.Conn, codec wire.Codec, handler *Handler, opts ClientOptions) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = DefaultMaxMessageSize
	}
	return &Client{
		id:      id,
		conn:    conn,
		codec:   codec,
		handler: handler,
		maxSize: opts.MaxMessageSize,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send encodes the event and queues it. A full queue means the peer is not
// keeping up: the frame is dropped and the connection is closed.
func (c *Client) Send(event string, data any) error {
	frame, err := c.codec.Encode(event, data)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		slog.Warn("send queue full, closing connection", "conn", c.id, "event", event)
		go c.Close()
		return ErrSendQueueFull
	}
}

// Close stops the write pump, which closes the socket. Safe to call more
// than once and from any goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// Start registers the connection and runs its pumps. It returns immediately.
func (c *Client) Start() {
	c.handler.Connect(c)
	slog.Info("client connected", "conn", c.id, "remote", c.conn.RemoteAddr().String(), "codec", c.codec.Name())

	go c.writePump()
	go c.readPump()
}

// readPump pumps frames from the websocket connection to the handler.
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) readPump() {
	defer func() {
		c.handler.Disconnect(c.id)
		c.Close()
		c.conn.Close()
		slog.Info("client disconnected", "conn", c.id)
	}()

	c.conn.SetReadLimit(c.maxSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("read failed", "conn", c.id, "error", err)
			}
			return
		}

		if err := wire.CheckFrameType(c.codec, messageType); err != nil {
			c.handler.Malformed(c, err)
			continue
		}
		env, err := c.codec.Decode(frame)
		if err != nil {
			c.handler.Malformed(c, err)
			continue
		}
		c.handler.Handle(c, env)
	}
}

// writePump pumps frames from the send queue to the websocket connection.
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	frameType := c.codec.FrameType()
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frameType, frame); err != nil {
				slog.Debug("write failed", "conn", c.id, "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.flush(frameType)
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued, so a kicked peer still gets its
// notice before the close frame.
func (c *Client) flush(frameType int) {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(frameType, frame); err != nil {
				return
			}
		default:
			return
		}
	}
}
