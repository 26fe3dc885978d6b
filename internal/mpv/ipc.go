package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

var (
	ErrClosed  = errors.New("mpv connection closed")
	ErrCommand = errors.New("mpv command failed")
)

// maxMessageSize bounds one IPC line; track-list replies can be large
const maxMessageSize = 1 << 20

// message is any line mpv writes on the IPC socket: a command reply carries
// request_id, an event carries event.
type message struct {
	RequestID int64           `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	Event     string `json:"event,omitempty"`
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason,omitempty"`
	FileError string `json:"file_error,omitempty"`
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// isTimePos reports whether msg is a playback position update. Those
// arrive at frame rate and only the latest one matters.
func (m message) isTimePos() bool {
	return m.Event == "property-change" && m.Name == "time-pos"
}

// eventQueue buffers events between the socket reader and the consumer.
// It never drops an event; consecutive position updates collapse into the
// newest one.
type eventQueue struct {
	mu    sync.Mutex
	items []message
	ready chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{ready: make(chan struct{}, 1)}
}

func (q *eventQueue) push(msg message) {
	q.mu.Lock()
	if n := len(q.items); n > 0 && msg.isTimePos() && q.items[n-1].isTimePos() {
		q.items[n-1] = msg
	} else {
		q.items = append(q.items, msg)
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) pop() (message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return message{}, false
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, true
}

// ipcClient speaks mpv's line-delimited JSON protocol over one connection
type ipcClient struct {
	conn   net.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan message

	queue  *eventQueue
	events chan message
	done   chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
}

func newIPCClient(conn net.Conn, logger *slog.Logger) *ipcClient {
	c := &ipcClient{
		conn:    conn,
		logger:  logger,
		pending: make(map[int64]chan message),
		queue:   newEventQueue(),
		events:  make(chan message, 16),
		done:    make(chan struct{}),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	go c.forward()
	return c
}

// Command sends one command and waits for its reply
func (c *ipcClient) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	reply := make(chan message, 1)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	line, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to encode command: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(line)
	c.writeMu.Unlock()
	if err != nil {
		select {
		case <-c.done:
			return nil, ErrClosed
		default:
		}
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	select {
	case msg := <-reply:
		if msg.Error != "success" {
			return nil, fmt.Errorf("%w: %v: %s", ErrCommand, args[0], msg.Error)
		}
		return msg.Data, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Events delivers event lines in order until the connection closes.
// Position updates may be coalesced when the consumer falls behind.
func (c *ipcClient) Events() <-chan message {
	return c.events
}

// Done is closed once the connection is gone
func (c *ipcClient) Done() <-chan struct{} {
	return c.done
}

func (c *ipcClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// forward moves queued events onto the events channel. After the
// connection is gone it drains what is left, then closes the channel.
func (c *ipcClient) forward() {
	defer close(c.events)

	for {
		msg, ok := c.queue.pop()
		if !ok {
			select {
			case <-c.queue.ready:
				continue
			case <-c.done:
				if msg, ok = c.queue.pop(); !ok {
					return
				}
			case <-c.closed:
				return
			}
		}

		select {
		case c.events <- msg:
		case <-c.closed:
			return
		}
	}
}

func (c *ipcClient) readLoop() {
	defer close(c.done)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxMessageSize)

	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			c.logger.Debug("ignoring malformed mpv message", "error", err)
			continue
		}

		if msg.Event != "" {
			c.queue.push(msg)
			continue
		}

		c.mu.Lock()
		reply, ok := c.pending[msg.RequestID]
		c.mu.Unlock()
		if ok {
			reply <- msg
		}
	}

	if err := scanner.Err(); err != nil {
		c.logger.Debug("mpv connection read failed", "error", err)
	}
}
