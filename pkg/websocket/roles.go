package websocket

import (
	"bytes"
	"fmt"
)

// EchoOnce answers exactly one request from the peer: one guarded read
// followed by one guarded write echoing the exact received bytes. Both
// failures are recorded; a read failure also stops further I/O. It
// returns true if the round completed.
//
// The connection is closed by its owner afterwards, never here.
func EchoOnce(conn Conn, rec *Recorder) bool {
	data, ok := conn.Read()
	if !ok {
		rec.record(conn, 0, ErrReadFailed)
		return false
	}
	if !conn.Write(data) {
		rec.record(conn, len(data), ErrWriteFailed)
		return false
	}
	rec.record(conn, len(data), nil)
	return true
}

// Echo runs the echo-responder role: a strict first round via EchoOnce,
// then further rounds until the peer stops sending. The read failure
// that ends the loop is the peer closing and is not recorded as a
// round; a failed echo write still is.
func Echo(conn Conn, rec *Recorder) {
	if !EchoOnce(conn, rec) {
		return
	}
	for {
		data, ok := conn.Read()
		if !ok {
			return
		}
		if !conn.Write(data) {
			rec.record(conn, len(data), ErrWriteFailed)
			return
		}
		rec.record(conn, len(data), nil)
	}
}

// RunInitiator runs the conversation-initiator role: ping first, then
// one strictly synchronous round per configured length. Round N's echo
// is always read before round N+1 is sent, so every echo is attributed
// to exactly one message and the peer reassembles one boundary size at
// a time.
//
// A write failure aborts the remaining sequence; a read failure or a
// content mismatch is recorded and the sequence continues. When the
// scenario sets CloseBeforeExit the connection is closed with a normal
// closure after the first round, which makes every later round fail its
// guarded write.
func RunInitiator(conn Conn, sc Scenario, rec *Recorder) {
	// Best-effort ping; pong arrival is observable only in peer logs
	// and must not gate the first data frame.
	conn.Ping()

	for _, n := range sc.Lengths {
		sent := randomPrintable(n)
		if !conn.Write(sent) {
			rec.record(conn, n, ErrWriteFailed)
			return
		}

		echo, ok := conn.Read()
		switch {
		case !ok:
			rec.record(conn, n, ErrReadFailed)
		case !bytes.Equal(echo, sent):
			rec.record(conn, n, fmt.Errorf("%w: sent %d bytes, received %d", ErrEchoMismatch, len(sent), len(echo)))
		default:
			rec.record(conn, n, nil)
		}

		if sc.CloseBeforeExit {
			_ = conn.Close(CloseNormalClosure)
		}
	}
}
