package conformance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getmockd/wscheck/pkg/engine"
	"github.com/getmockd/wscheck/pkg/logging"
	"github.com/getmockd/wscheck/pkg/websocket"
)

// defaultTimeout bounds one whole scenario, dial included.
const defaultTimeout = 30 * time.Second

// Params configures one scenario run. All configuration is supplied by
// the caller; nothing is read from the environment or from files.
type Params struct {
	// URL is an external ws:// endpoint to check. When empty, Run
	// starts its own local server and checks that.
	URL string

	// Addr, Port and Transport configure the local server when URL is
	// empty. Port 0 picks an ephemeral port.
	Addr      string
	Port      int
	Transport engine.TransportMode

	// Scenario is the message-length sequence and early-close flag for
	// the initiator. The zero value means the default scenario.
	Scenario websocket.Scenario

	// ServerInitiates offers the server-initiates subprotocol, so the
	// server runs the initiator role and the client echoes.
	ServerInitiates bool

	// SkipZeroLength drops the zero-length round. Used for third-party
	// endpoints that do not echo empty messages.
	SkipZeroLength bool

	// Timeout bounds the whole run. Zero means a default.
	Timeout time.Duration

	// Logger receives operational logs. Nil means no logging.
	Logger *slog.Logger
}

// Report is the outcome of one scenario run: every round observed on
// the client side and, for local runs, every round recorded by the
// detached server-side roles.
type Report struct {
	Client []websocket.RoundResult
	Server []websocket.RoundResult
}

// Failures returns all failed rounds from both sides.
func (r *Report) Failures() []websocket.RoundResult {
	var out []websocket.RoundResult
	for _, res := range r.Client {
		if !res.OK() {
			out = append(out, res)
		}
	}
	for _, res := range r.Server {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Run executes one scenario. Malformed configuration fails here, before
// any server is started or connection opened.
func Run(ctx context.Context, p Params) (*Report, error) {
	log := p.Logger
	if log == nil {
		log = logging.Nop()
	}

	sc := p.Scenario
	if len(sc.Lengths) == 0 {
		sc.Lengths = websocket.DefaultScenario().Lengths
	}
	if p.SkipZeroLength {
		sc = sc.WithoutZeroLength()
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("scenario: %w", err)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rec := websocket.NewRecorder()

	url := p.URL
	var srv *engine.Server
	if url == "" {
		srv = engine.NewServer(engine.Config{
			Addr:      p.Addr,
			Port:      p.Port,
			Transport: p.Transport,
		}, engine.WithLogger(log), engine.WithRecorder(rec), engine.WithScenario(sc))
		if err := srv.Start(); err != nil {
			return nil, fmt.Errorf("start server: %w", err)
		}
		defer func() { _ = srv.Stop() }()
		url = srv.URL()
	}

	subprotocol := ""
	if p.ServerInitiates {
		subprotocol = websocket.SubprotocolServerInitiates
	}

	clientRec := websocket.NewRecorder()
	conn, err := websocket.Dial(ctx, url, subprotocol, log)
	if err != nil {
		return nil, err
	}

	// The role's guarded I/O carries no deadline of its own, so the run
	// deadline is enforced from outside: closing the connection turns a
	// blocked read or write into a not-ok round and the role returns. An
	// endpoint that completes the handshake but never answers cannot
	// stall the run past its Timeout.
	roleDone := make(chan struct{})
	go func() {
		defer close(roleDone)
		if p.ServerInitiates {
			log.Debug("running echo role on client", "conn", conn.ID())
			websocket.Echo(conn, clientRec)
		} else {
			log.Debug("running initiator role on client", "conn", conn.ID())
			websocket.RunInitiator(conn, sc, clientRec)
		}
	}()

	var runErr error
	select {
	case <-roleDone:
	case <-ctx.Done():
		log.Warn("run deadline reached, closing connection", "conn", conn.ID())
		_ = conn.Close(websocket.CloseGoingAway)
		<-roleDone
		runErr = fmt.Errorf("scenario run: %w", ctx.Err())
	}
	_ = conn.Close(websocket.CloseNormalClosure)

	report := &Report{Client: clientRec.Results()}
	if srv != nil {
		if err := srv.Stop(); err != nil && runErr == nil {
			return report, fmt.Errorf("stop server: %w", err)
		}
		// Collected only after shutdown: server-side roles are detached
		// and report through the shared recorder, not a call stack.
		report.Server = rec.Results()
	}
	return report, runErr
}
