package ws

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	sseQueueSize = 64
	sseWriteWait = 10 * time.Second
)

// ErrSlowSubscriber is returned by Send when the stream fell too far behind.
var ErrSlowSubscriber = errors.New("ws: subscriber queue full")

// SSEClient streams Server-Sent Events over an HTTP response writer. Send only
// queues; the request goroutine drains Pending and calls Write.
type SSEClient struct {
	// wmu serializes frames; mu guards state and is never held across a write.
	wmu     sync.Mutex
	mu      sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	control *http.ResponseController
	event   string
	log     *slog.Logger
	queue   chan []byte
	done    chan struct{}
	closed  bool
	last    time.Time
}

// NewSSEClient builds an SSE client instance. Frames carry the given event
// name when it is not empty.
func NewSSEClient(writer io.Writer, flusher http.Flusher, event string, logger *slog.Logger) *SSEClient {
	c := &SSEClient{
		writer:  writer,
		flusher: flusher,
		event:   event,
		log:     logger,
		queue:   make(chan []byte, sseQueueSize),
		done:    make(chan struct{}),
		last:    time.Now().UTC(),
	}
	if rw, ok := writer.(http.ResponseWriter); ok {
		c.control = http.NewResponseController(rw)
	}
	return c
}

// Send queues payload without blocking. A full queue closes the client.
func (c *SSEClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.EOF
	}
	select {
	case c.queue <- payload:
		return nil
	default:
		c.closeLocked()
		c.log.Warn("sse subscriber too slow, dropping stream")
		return ErrSlowSubscriber
	}
}

// Pending yields queued payloads.
func (c *SSEClient) Pending() <-chan []byte {
	return c.queue
}

// Done is closed once the client stops accepting payloads.
func (c *SSEClient) Done() <-chan struct{} {
	return c.done
}

// Write emits a data event to the stream under a write deadline.
func (c *SSEClient) Write(payload []byte) error {
	if c.event != "" {
		return c.writeFrame("event: %s\ndata: %s\n\n", c.event, payload)
	}
	return c.writeFrame("data: %s\n\n", payload)
}

// Heartbeat emits a comment frame to keep the connection alive.
func (c *SSEClient) Heartbeat() error {
	return c.writeFrame(": ping\n\n")
}

func (c *SSEClient) writeFrame(format string, args ...any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.Closed() {
		return io.EOF
	}
	if c.control != nil {
		// recorders and other writers without a conn report ErrNotSupported
		_ = c.control.SetWriteDeadline(time.Now().Add(sseWriteWait))
		defer c.control.SetWriteDeadline(time.Time{})
	}
	if _, err := fmt.Fprintf(c.writer, format, args...); err != nil {
		c.Close()
		c.log.Warn("sse write failed", "error", err)
		return err
	}
	c.flusher.Flush()
	c.mu.Lock()
	c.last = time.Now().UTC()
	c.mu.Unlock()
	return nil
}

// Close marks the stream as closed.
func (c *SSEClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *SSEClient) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Closed reports whether the stream stopped accepting writes.
func (c *SSEClient) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LastActivity reports the timestamp of the most recent successful write.
func (c *SSEClient) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
