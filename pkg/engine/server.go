package engine

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/getmockd/wscheck/pkg/logging"
	"github.com/getmockd/wscheck/pkg/ratelimit"
	"github.com/getmockd/wscheck/pkg/websocket"
)

// defaultAcceptRate throttles the raw-listener accept loop.
const (
	defaultAcceptRate  = 256.0 // accepts per second
	defaultAcceptBurst = 16
)

// Config holds the caller-supplied server configuration. It is never
// read from the environment or from files.
type Config struct {
	// Addr is the listen address. Defaults to 127.0.0.1.
	Addr string

	// Port is the listen port. 0 picks an ephemeral port; the bound
	// address is available from Addr()/URL() after Start.
	Port int

	// Transport selects the lifecycle variant. Defaults to
	// TransportListener.
	Transport TransportMode

	// AcceptRate and AcceptBurst tune the accept throttle of the
	// raw-listener transport. Zero values pick defaults.
	AcceptRate  float64
	AcceptBurst int
}

// Server is the harness server: one listener whose accepted requests
// are dispatched to the plain responder or the upgrade gatekeeper.
type Server struct {
	cfg      Config
	log      *slog.Logger
	rec      *websocket.Recorder
	scenario websocket.Scenario

	mu      sync.Mutex
	tr      transport
	gk      *websocket.Gatekeeper
	running bool
}

// ServerOption is a functional option for configuring a Server.
type ServerOption func(*Server)

// WithLogger sets the operational logger for the server.
func WithLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRecorder sets the recorder that collects results from server-side
// roles. The orchestrator passes its own recorder here so detached role
// failures can be inspected after shutdown.
func WithRecorder(rec *websocket.Recorder) ServerOption {
	return func(s *Server) {
		if rec != nil {
			s.rec = rec
		}
	}
}

// WithScenario sets the scenario the server-side initiator runs when a
// client offers the server-initiates subprotocol.
func WithScenario(sc websocket.Scenario) ServerOption {
	return func(s *Server) {
		s.scenario = sc
	}
}

// NewServer creates a new harness server with the given configuration.
func NewServer(cfg Config, opts ...ServerOption) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1"
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportListener
	}
	if cfg.AcceptRate <= 0 {
		cfg.AcceptRate = defaultAcceptRate
	}
	if cfg.AcceptBurst <= 0 {
		cfg.AcceptBurst = defaultAcceptBurst
	}

	s := &Server{
		cfg:      cfg,
		log:      logging.Nop(),
		rec:      websocket.NewRecorder(),
		scenario: websocket.DefaultScenario(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start binds the listener and begins serving. It returns only once the
// listener is actually bound, so a client dialing right after Start can
// never race the bind. Startup errors from the control transport are
// drained and surfaced here.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	s.gk = websocket.NewGatekeeper(s.scenario, s.rec, s.log)
	h := &handler{gatekeeper: s.gk, log: s.log}

	switch s.cfg.Transport {
	case TransportControl:
		ct := newControlTransport(s.log)
		// Control mode surfaces handshake failures on its outbound
		// channel as well as in the log.
		h.errSink = ct.pushErr
		s.tr = ct
	case TransportListener:
		s.tr = newListenerTransport(ratelimit.NewBucket(s.cfg.AcceptRate, s.cfg.AcceptBurst), s.log)
	default:
		return fmt.Errorf("unknown transport mode %q", s.cfg.Transport)
	}

	addrStr := net.JoinHostPort(s.cfg.Addr, strconv.Itoa(s.cfg.Port))
	if err := s.tr.start(addrStr, h); err != nil {
		return err
	}
	if errs := s.tr.drainErrors(); len(errs) > 0 {
		_ = s.tr.stop()
		return errs[0]
	}

	s.running = true
	s.log.Info("harness server started", "addr", s.tr.addr().String(), "transport", string(s.cfg.Transport))
	return nil
}

// Stop shuts the server down: no further requests are accepted and the
// background serve task terminates. Stop is idempotent and safe to call
// on a server that never started.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	err := s.tr.stop()
	// End any roles still running on open connections and wait for
	// their results to land before callers read the recorder.
	s.gk.Shutdown()
	for _, terr := range s.tr.drainErrors() {
		s.log.Warn("transport reported error", "error", terr)
	}
	s.running = false
	s.log.Info("harness server stopped")
	return err
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tr == nil {
		return nil
	}
	return s.tr.addr()
}

// URL returns the ws:// URL of the running server.
func (s *Server) URL() string {
	a := s.Addr()
	if a == nil {
		return ""
	}
	return "ws://" + a.String()
}

// Results returns the rounds recorded by server-side roles so far.
func (s *Server) Results() []websocket.RoundResult {
	return s.rec.Results()
}
