package websocket

import "sync"

// RoundResult is the outcome of one protocol round: a message round
// trip for the initiator, or a read/write pair for the responder. A nil
// Err means the round completed with byte-exact content.
type RoundResult struct {
	ConnID string
	Side   Side
	Length int
	Err    error
}

// OK reports whether the round succeeded.
func (r RoundResult) OK() bool { return r.Err == nil }

// Recorder collects round results from role functions.
//
// Roles running on the server side are detached from the test process:
// their failures cannot propagate up any call stack, so they are
// recorded here and collected by the orchestrator after shutdown. The
// same recorder type is used on the client side so both placements of a
// role are observed identically.
//
// Recorder is safe for concurrent use by roles on multiple connections.
type Recorder struct {
	mu      sync.Mutex
	results []RoundResult
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends one round result.
func (rec *Recorder) Record(res RoundResult) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.results = append(rec.results, res)
}

// record is the role-side helper: it attributes the result to the
// connection the role runs on.
func (rec *Recorder) record(conn Conn, length int, err error) {
	rec.Record(RoundResult{
		ConnID: conn.ID(),
		Side:   conn.Side(),
		Length: length,
		Err:    err,
	})
}

// Results returns a snapshot of all recorded rounds, in record order.
func (rec *Recorder) Results() []RoundResult {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]RoundResult, len(rec.results))
	copy(out, rec.results)
	return out
}

// Failures returns the recorded rounds that did not succeed.
func (rec *Recorder) Failures() []RoundResult {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	var out []RoundResult
	for _, r := range rec.results {
		if !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
