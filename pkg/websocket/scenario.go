package websocket

import (
	"fmt"
	"math/rand"
)

// Scenario configures one conversation-initiator run: the ordered
// message lengths to exercise and whether the initiator closes the
// connection after the first round instead of finishing the sequence.
type Scenario struct {
	// Lengths is the ordered sequence of message sizes to send. It
	// should include the frame-length boundary values where the wire
	// protocol switches length-field encoding width.
	Lengths []int

	// CloseBeforeExit closes the connection with a normal-closure
	// status after the first round, before processing further lengths.
	CloseBeforeExit bool
}

// DefaultScenario returns the standard length sequence: the empty
// message plus the sizes just below and above the 7-bit and 16-bit
// length-field thresholds (126 and 65536 are the first sizes encoded
// with the wider field).
func DefaultScenario() Scenario {
	return Scenario{Lengths: []int{0, 10, 125, 126, 65535, 65536}}
}

// Validate checks the scenario for malformed configuration. It is
// called at orchestration start so bad input fails fast rather than
// mid-conversation.
func (s Scenario) Validate() error {
	if len(s.Lengths) == 0 {
		return ErrEmptyScenario
	}
	for _, n := range s.Lengths {
		if n < 0 {
			return fmt.Errorf("%w: %d", ErrNegativeLength, n)
		}
	}
	return nil
}

// WithoutZeroLength returns a copy of the scenario with all zero-length
// rounds removed. Some third-party endpoints do not echo empty
// messages; the orchestrator skips the zero case for those only.
func (s Scenario) WithoutZeroLength() Scenario {
	out := Scenario{CloseBeforeExit: s.CloseBeforeExit}
	for _, n := range s.Lengths {
		if n != 0 {
			out.Lengths = append(out.Lengths, n)
		}
	}
	return out
}

const printable = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 !#$%&()*+,-./:;<=>?@[]^_{|}~"

// randomPrintable generates a random printable payload of exactly n bytes.
func randomPrintable(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = printable[rand.Intn(len(printable))]
	}
	return b
}
