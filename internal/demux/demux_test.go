package demux

import (
	"net"
	"sync"
	"testing"

	"github.com/joaodiaslobo/sd-kvserver/internal/wire"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientDemux := New(client)
	serverDemux := New(server)

	go clientDemux.Send(5, wire.TypeGet, []byte("hi"))

	frame, err := serverDemux.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if frame.Tag != 5 || frame.Type != wire.TypeGet || string(frame.Payload) != "hi" {
		t.Errorf("unexpected frame: %+v", frame)
	}
}

func TestConcurrentSendsDoNotInterleave(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientDemux := New(client)
	serverDemux := New(server)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clientDemux.Send(int32(i), wire.TypePut, []byte("payload"))
		}(i)
	}

	seen := make(map[int32]bool)
	for i := 0; i < n; i++ {
		frame, err := serverDemux.Receive()
		if err != nil {
			t.Fatalf("Receive failed: %v", err)
		}
		if string(frame.Payload) != "payload" {
			t.Fatalf("frame payload corrupted by interleaving: %q", frame.Payload)
		}
		seen[frame.Tag] = true
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("expected %d distinct tags, saw %d", n, len(seen))
	}
}

func TestCloseIsIdempotentAndRejectsFurtherUse(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	d := New(client)
	if err := d.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
	if err := d.Send(1, wire.TypePut, nil); err != ErrClosed {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}
