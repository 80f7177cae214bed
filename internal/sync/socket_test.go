package sync

import (
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"
)

// fakeSocket is an in-process Socket. The test plays the client side:
// clientSend feeds frames the server will read, clientRecv consumes
// frames the server wrote.
type fakeSocket struct {
	in  chan socketFrame
	out chan socketFrame

	closeOnce sync.Once
	closed    chan struct{}
}

type socketFrame struct {
	kind int
	data []byte
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		in:     make(chan socketFrame, 64),
		out:    make(chan socketFrame, 256),
		closed: make(chan struct{}),
	}
}

func (s *fakeSocket) ReadMessage() (int, []byte, error) {
	select {
	case f := <-s.in:
		return f.kind, f.data, nil
	case <-s.closed:
		return 0, nil, net.ErrClosed
	}
}

func (s *fakeSocket) WriteMessage(kind int, data []byte) error {
	select {
	case s.out <- socketFrame{kind: kind, data: data}:
		return nil
	case <-s.closed:
		return net.ErrClosed
	}
}

func (s *fakeSocket) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

const recvTimeout = 2 * time.Second

func (s *fakeSocket) clientSend(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal client frame: %v", err)
	}
	select {
	case s.in <- socketFrame{kind: textFrame, data: data}:
	case <-time.After(recvTimeout):
		t.Fatal("timed out sending client frame")
	}
}

func (s *fakeSocket) clientSendBinary(t *testing.T, data []byte) {
	t.Helper()
	select {
	case s.in <- socketFrame{kind: binaryFrame, data: data}:
	case <-time.After(recvTimeout):
		t.Fatal("timed out sending binary frame")
	}
}

// clientRecv reads the next server frame and decodes it as JSON.
func (s *fakeSocket) clientRecv(t *testing.T) map[string]any {
	t.Helper()
	select {
	case f := <-s.out:
		if f.kind != textFrame {
			t.Fatalf("expected text frame, got kind %d", f.kind)
		}
		var msg map[string]any
		if err := json.Unmarshal(f.data, &msg); err != nil {
			t.Fatalf("unmarshal server frame %q: %v", f.data, err)
		}
		return msg
	case <-time.After(recvTimeout):
		t.Fatal("timed out waiting for server frame")
		return nil
	}
}

func (s *fakeSocket) clientRecvBinary(t *testing.T) []byte {
	t.Helper()
	select {
	case f := <-s.out:
		if f.kind != binaryFrame {
			t.Fatalf("expected binary frame, got kind %d: %s", f.kind, f.data)
		}
		return f.data
	case <-time.After(recvTimeout):
		t.Fatal("timed out waiting for binary frame")
		return nil
	}
}
