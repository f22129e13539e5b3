// Package websocket implements the protocol-facing core of the wscheck
// conformance harness: guarded connections, the echo-responder and
// conversation-initiator roles, and the upgrade gatekeeper that routes
// an incoming handshake to one of those roles.
//
// The wire protocol itself is not implemented here. Server-side
// connections are accepted with github.com/coder/websocket and
// client-side connections are dialed with github.com/gorilla/websocket;
// both are wrapped behind the Conn interface so the same role code runs
// on either end of a conversation.
//
// Guarded I/O: Read and Write report success with a flag instead of an
// error. A protocol-level failure (peer closed, broken pipe, oversized
// frame) is never a crash, only a not-ok result. Failures observed by a
// role are recorded on a Recorder rather than propagated, because
// server-side roles run detached from the test process and have no call
// stack to propagate through.
package websocket
