package sync

import (
	"errors"
	"io"
	"net"

	"github.com/gorilla/websocket"
)

// Frame kinds, aligned with the websocket wire values.
const (
	textFrame   = websocket.TextMessage
	binaryFrame = websocket.BinaryMessage
)

// Socket is the duplex framed transport a connection runs on. It is the
// subset of *websocket.Conn the sync engine needs; tests substitute an
// in-process implementation.
//
// ReadMessage is called from a single goroutine. WriteMessage callers
// are serialized by the connection.
type Socket interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

var _ Socket = (*websocket.Conn)(nil)

// isClosedError reports whether err is an ordinary peer disconnect
// rather than a protocol failure.
func isClosedError(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
}
