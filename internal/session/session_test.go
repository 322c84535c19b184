package session

import (
	"net"
	"testing"
	"time"

	"github.com/joaodiaslobo/sd-kvserver/internal/demux"
	"github.com/joaodiaslobo/sd-kvserver/internal/logging"
	"github.com/joaodiaslobo/sd-kvserver/internal/store"
	"github.com/joaodiaslobo/sd-kvserver/internal/wire"
)

// newTestSession wires a Session to one end of an in-memory pipe, running
// its loop in the background, and hands the test the other end's demux to
// drive requests through.
func newTestSession(t *testing.T, st *store.ShardedStore) (*demux.Demux, func()) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	logger := logging.New("debug", false)
	sess := New(demux.New(serverConn), st, nil, logger)
	done := make(chan struct{})
	go func() {
		sess.Run()
		close(done)
	}()

	client := demux.New(clientConn)
	cleanup := func() {
		client.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("session did not exit after connection close")
		}
	}
	return client, cleanup
}

func TestSessionPutGetRoundTrip(t *testing.T) {
	st := store.New(4, 4)
	client, cleanup := newTestSession(t, st)
	defer cleanup()

	var buf []byte
	buf = appendSessionUTF(buf, "k")
	buf = appendSessionBytesField(buf, []byte("v"))
	if err := client.Send(1, wire.TypePut, buf); err != nil {
		t.Fatalf("Send put failed: %v", err)
	}
	reply, err := client.Receive()
	if err != nil {
		t.Fatalf("Receive put reply failed: %v", err)
	}
	if reply.Tag != 1 || reply.Type != wire.TypePut || len(reply.Payload) != 0 {
		t.Errorf("unexpected put reply: %+v", reply)
	}

	getBuf := appendSessionUTF(nil, "k")
	if err := client.Send(2, wire.TypeGet, getBuf); err != nil {
		t.Fatalf("Send get failed: %v", err)
	}
	getReply, err := client.Receive()
	if err != nil {
		t.Fatalf("Receive get reply failed: %v", err)
	}
	if getReply.Tag != 2 {
		t.Errorf("expected tag 2, got %d", getReply.Tag)
	}
	if string(getReply.Payload) != string(appendSessionBytesField(nil, []byte("v"))) {
		t.Errorf("expected get reply i32(1) \"v\", got %v", getReply.Payload)
	}
}

func TestSessionAuthFailureIsEmptyPayload(t *testing.T) {
	st := store.New(4, 4)
	client, cleanup := newTestSession(t, st)
	defer cleanup()

	var buf []byte
	buf = appendSessionUTF(buf, "nobody")
	buf = appendSessionUTF(buf, "pw")
	client.Send(1, wire.TypeAuth, buf)

	reply, err := client.Receive()
	if err != nil {
		t.Fatalf("Receive auth reply failed: %v", err)
	}
	if len(reply.Payload) != 0 {
		t.Errorf("expected empty payload on auth failure, got %v", reply.Payload)
	}
}

func TestSessionDisconnectClosesConnection(t *testing.T) {
	st := store.New(4, 4)
	client, cleanup := newTestSession(t, st)
	defer cleanup()

	client.Send(9, wire.TypeDisconnect, nil)
	reply, err := client.Receive()
	if err != nil {
		t.Fatalf("Receive disconnect echo failed: %v", err)
	}
	if reply.Tag != 9 || reply.Type != wire.TypeDisconnect {
		t.Errorf("unexpected disconnect echo: %+v", reply)
	}
	if _, err := client.Receive(); err == nil {
		t.Error("expected the connection to be closed after the disconnect echo")
	}
}

func appendSessionUTF(buf []byte, s string) []byte {
	n := len(s)
	buf = append(buf, byte(n>>8), byte(n))
	return append(buf, s...)
}

func appendSessionBytesField(buf []byte, b []byte) []byte {
	n := len(b)
	buf = append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	return append(buf, b...)
}
