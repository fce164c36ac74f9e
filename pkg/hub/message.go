// Package hub provides a thread-safe websocket broadcast hub
// using the idiomatic Go channel-based fan-out pattern.
package hub

import "github.com/teslashibe/go-marionette/pkg/protocol"

// Message is a pre-encoded frame queued for clients.
type Message struct {
	Data []byte
}

// NewMessage encodes a protocol message for broadcast.
func NewMessage(msg *protocol.Message) (Message, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Message{}, err
	}
	return Message{Data: data}, nil
}
