package websocket

// Side identifies which end of a conversation a connection belongs to.
type Side int

// Connection sides.
const (
	// SideServer marks a connection accepted by the harness server.
	SideServer Side = iota
	// SideClient marks a connection dialed by the orchestrator.
	SideClient
)

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideServer:
		return "server"
	case SideClient:
		return "client"
	default:
		return "unknown"
	}
}

// CloseCode represents a WebSocket close status code per RFC 6455.
type CloseCode int

const (
	// CloseNormalClosure indicates a normal closure (1000).
	CloseNormalClosure CloseCode = 1000
	// CloseGoingAway indicates the endpoint is going away (1001).
	CloseGoingAway CloseCode = 1001
	// CloseProtocolError indicates a protocol error (1002).
	CloseProtocolError CloseCode = 1002
	// CloseInternalError indicates an internal server error (1011).
	CloseInternalError CloseCode = 1011
)

// SubprotocolServerInitiates is the subprotocol token a client offers to
// ask the server to start the conversation. A handshake carrying this
// token runs the conversation-initiator role on the server side; any
// other offer (or none) runs the echo responder there.
const SubprotocolServerInitiates = "wscheck.server-initiates"
