package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/getmockd/wscheck/pkg/ratelimit"
)

// TransportMode selects how the listener is run and shut down.
type TransportMode string

const (
	// TransportListener binds a raw listener with an accept-rate
	// limiter; shutdown closes the socket directly.
	TransportListener TransportMode = "listener"
	// TransportControl runs the listener behind inbound/outbound
	// control channels; shutdown is triggered by any message on the
	// inbound channel.
	TransportControl TransportMode = "control"
)

// transport is the capability set both modes implement. start returns
// only once the listener is bound (or definitively failed), so a caller
// can never race the bind. stop is idempotent.
type transport interface {
	start(addrStr string, h http.Handler) error
	stop() error
	drainErrors() []error
	addr() net.Addr
}

// serveErrBenign reports errors that http.Server.Serve returns during a
// normal shutdown.
func serveErrBenign(err error) bool {
	return err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, http.ErrServerClosed)
}

// listenerTransport is the raw-listener mode. The accept loop is
// throttled by a token bucket and shutdown closes the socket, which
// unblocks Serve.
type listenerTransport struct {
	limiter *ratelimit.Bucket
	log     *slog.Logger

	ln      net.Listener
	done    chan struct{}
	stopCtx context.Context
	stopFn  context.CancelFunc
	stopped atomic.Bool
}

func newListenerTransport(limiter *ratelimit.Bucket, log *slog.Logger) *listenerTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &listenerTransport{
		limiter: limiter,
		log:     log,
		stopCtx: ctx,
		stopFn:  cancel,
	}
}

func (t *listenerTransport) start(addrStr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addrStr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", addrStr, err)
	}
	t.ln = ln
	t.done = make(chan struct{})

	srv := &http.Server{Handler: h}
	go func() {
		defer close(t.done)
		err := srv.Serve(&throttledListener{
			Listener: ln,
			limiter:  t.limiter,
			ctx:      t.stopCtx,
		})
		if !serveErrBenign(err) {
			t.log.Error("serve loop ended", "error", err)
		}
	}()
	return nil
}

func (t *listenerTransport) stop() error {
	if t.stopped.Swap(true) {
		return nil
	}
	if t.ln == nil {
		return nil
	}
	t.stopFn()
	_ = t.ln.Close()
	<-t.done
	return nil
}

// drainErrors always returns nil for this mode: bind failures surface
// synchronously from start, and serve failures go to the log. There is
// no control channel.
func (t *listenerTransport) drainErrors() []error { return nil }

func (t *listenerTransport) addr() net.Addr {
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// throttledListener paces Accept with the token bucket. The context is
// cancelled on stop so a starved accept loop still exits promptly.
type throttledListener struct {
	net.Listener
	limiter *ratelimit.Bucket
	ctx     context.Context
}

func (l *throttledListener) Accept() (net.Conn, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(l.ctx); err != nil {
			return nil, net.ErrClosed
		}
	}
	return l.Listener.Accept()
}

// controlTransport is the queue-backed mode. The listener runs behind a
// control pump: any sentinel message on ctrlIn triggers shutdown, and
// failures flow out on ctrlOut. The channel carries bind failures,
// serve-loop failures and handshake failures, spilling into an
// unbounded ring when nobody is draining.
type controlTransport struct {
	log *slog.Logger

	ctrlIn  chan struct{}
	ctrlOut chan error

	mu    sync.Mutex
	spill *queue.Queue // overflow for ctrlOut
	ln    net.Listener

	done    chan struct{}
	stopped atomic.Bool
}

func newControlTransport(log *slog.Logger) *controlTransport {
	return &controlTransport{
		log:     log,
		ctrlIn:  make(chan struct{}, 1),
		ctrlOut: make(chan error, 8),
		spill:   queue.New(),
	}
}

func (t *controlTransport) start(addrStr string, h http.Handler) error {
	t.done = make(chan struct{})
	ready := make(chan struct{})
	go t.run(addrStr, h, ready)
	<-ready
	return nil
}

// run binds, serves, and pumps control messages until shutdown. ready
// is closed once the listener outcome is known; bind failures are
// reported on the outbound control channel, not returned.
func (t *controlTransport) run(addrStr string, h http.Handler, ready chan struct{}) {
	defer close(t.done)

	ln, err := net.Listen("tcp", addrStr)
	if err != nil {
		t.pushErr(fmt.Errorf("bind %s: %w", addrStr, err))
		close(ready)
		return
	}
	t.mu.Lock()
	t.ln = ln
	t.mu.Unlock()

	srv := &http.Server{Handler: h}
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		// An accept failure ends Serve, so it surfaces here too.
		if err := srv.Serve(ln); !serveErrBenign(err) {
			t.log.Error("serve loop ended", "error", err)
			t.pushErr(fmt.Errorf("serve: %w", err))
		}
	}()
	close(ready)

	// Control pump: any inbound message means stop.
	<-t.ctrlIn
	_ = ln.Close()
	<-serveDone
}

func (t *controlTransport) stop() error {
	if t.stopped.Swap(true) {
		return nil
	}
	if t.done == nil {
		return nil
	}
	select {
	case t.ctrlIn <- struct{}{}:
	default:
		// pump already gone (bind failed or a message is pending)
	}
	<-t.done
	return nil
}

// pushErr reports a failure on the outbound control channel. When the
// channel buffer is full the error goes to the spill ring instead, so
// reporting never blocks and nothing is dropped.
func (t *controlTransport) pushErr(err error) {
	select {
	case t.ctrlOut <- err:
	default:
		t.mu.Lock()
		t.spill.Add(err)
		t.mu.Unlock()
	}
}

func (t *controlTransport) drainErrors() []error {
	var errs []error
	for {
		select {
		case err := <-t.ctrlOut:
			errs = append(errs, err)
		default:
			t.mu.Lock()
			for t.spill.Length() > 0 {
				errs = append(errs, t.spill.Remove().(error))
			}
			t.mu.Unlock()
			return errs
		}
	}
}

func (t *controlTransport) addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}
