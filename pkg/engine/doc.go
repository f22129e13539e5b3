// Package engine manages the lifecycle of the harness server: it binds
// a listener under one of two transport configurations, dispatches each
// accepted request to either the upgrade gatekeeper or the plain HTTP
// responder, and provides an idempotent stop.
//
// The two transports behave identically from a protocol standpoint and
// differ only in how shutdown is triggered and how startup errors are
// surfaced:
//
//   - TransportListener binds the socket directly, throttles the accept
//     loop with a token bucket, and stops by closing the socket.
//   - TransportControl wraps the server behind inbound/outbound control
//     channels: any message on the inbound channel triggers shutdown,
//     and startup errors are queued for draining once the listener is
//     confirmed running.
package engine
