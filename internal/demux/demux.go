// Package demux wraps a single net.Conn with the send/receive discipline the
// request engine needs: many concurrent producers may send tagged frames,
// while exactly one consumer drains inbound frames in arrival order.
package demux

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"github.com/joaodiaslobo/sd-kvserver/internal/wire"
)

// ErrClosed is returned by Send/Receive once the demultiplexer has been
// closed.
var ErrClosed = errors.New("demux: closed")

// Demux is a thread-safe frame shuttle over one connection. Send is safe to
// call from any number of goroutines concurrently; Receive is intended for a
// single reader loop (the owning session).
type Demux struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// New wraps conn in a Demux ready for use.
func New(conn net.Conn) *Demux {
	return &Demux{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Send writes one frame atomically: the whole header+payload is assembled
// before the single underlying Write call, so concurrent senders never
// interleave partial frames on the wire.
func (d *Demux) Send(tag int32, typ int16, payload []byte) error {
	buf := wire.Marshal(tag, typ, payload)

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if d.isClosed() {
		return ErrClosed
	}

	_, err := d.conn.Write(buf)
	return err
}

// Receive returns the next frame off the wire, or an error. Callers should
// treat io.EOF as a clean disconnect and any other error as fatal.
func (d *Demux) Receive() (wire.Frame, error) {
	if d.isClosed() {
		return wire.Frame{}, ErrClosed
	}
	return wire.ReadFrame(d.reader)
}

// Close is idempotent; subsequent Send/Receive calls fail with ErrClosed.
func (d *Demux) Close() error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.conn.Close()
}

func (d *Demux) isClosed() bool {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	return d.closed
}
