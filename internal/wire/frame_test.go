package wire

import (
	"bufio"
	"bytes"
	"io"
	"testing"
)

func TestMarshalReadFrameRoundTrip(t *testing.T) {
	t.Run("round trips tag, type and payload", func(t *testing.T) {
		encoded := Marshal(42, TypeGet, []byte("hello"))
		r := bufio.NewReader(bytes.NewReader(encoded))

		frame, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if frame.Tag != 42 {
			t.Errorf("expected tag 42, got %d", frame.Tag)
		}
		if frame.Type != TypeGet {
			t.Errorf("expected type %d, got %d", TypeGet, frame.Type)
		}
		if !bytes.Equal(frame.Payload, []byte("hello")) {
			t.Errorf("expected payload %q, got %q", "hello", frame.Payload)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		encoded := Marshal(1, TypePut, nil)
		r := bufio.NewReader(bytes.NewReader(encoded))

		frame, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame failed: %v", err)
		}
		if len(frame.Payload) != 0 {
			t.Errorf("expected empty payload, got %d bytes", len(frame.Payload))
		}
	})
}

func TestReadFrameEOF(t *testing.T) {
	t.Run("clean EOF with no bytes", func(t *testing.T) {
		r := bufio.NewReader(bytes.NewReader(nil))
		_, err := ReadFrame(r)
		if err != io.EOF {
			t.Errorf("expected io.EOF, got %v", err)
		}
	})

	t.Run("partial header is a protocol violation", func(t *testing.T) {
		r := bufio.NewReader(bytes.NewReader([]byte{0, 0, 0, 1}))
		_, err := ReadFrame(r)
		if err == nil {
			t.Fatal("expected an error for a truncated header")
		}
	})
}

func TestReadFrameTooLarge(t *testing.T) {
	header := Marshal(1, TypeGet, nil)
	// Overwrite the length field with something past MaxPayload.
	header[6] = 0x7F
	header[7] = 0xFF
	header[8] = 0xFF
	header[9] = 0xFF

	r := bufio.NewReader(bytes.NewReader(header))
	_, err := ReadFrame(r)
	if err != ErrFrameTooLarge {
		t.Errorf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrameMultipleFramesOnStream(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Marshal(1, TypePut, []byte("a")))
	buf.Write(Marshal(2, TypeGet, []byte("b")))

	r := bufio.NewReader(&buf)

	first, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("first ReadFrame failed: %v", err)
	}
	if first.Tag != 1 {
		t.Errorf("expected first tag 1, got %d", first.Tag)
	}

	second, err := ReadFrame(r)
	if err != nil {
		t.Fatalf("second ReadFrame failed: %v", err)
	}
	if second.Tag != 2 {
		t.Errorf("expected second tag 2, got %d", second.Tag)
	}
}
