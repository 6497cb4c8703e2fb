// Package hub fans status updates out to websocket clients using a single
// goroutine that owns the client set.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded message
	JSONMessage MessageType = iota
	// TextMessage is plain text
	TextMessage
)

// Message represents a message to be broadcast to clients
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage creates a JSON message from pre-encoded bytes
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewTextMessage creates a plain text message
func NewTextMessage(s string) Message {
	return Message{Type: TextMessage, Data: []byte(s)}
}
