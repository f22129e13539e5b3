// Package conformance drives full harness scenarios: start a server,
// open a client connection to it (or to an external endpoint), run a
// role on the client side, collect round results from both sides, and
// stop the server.
package conformance
