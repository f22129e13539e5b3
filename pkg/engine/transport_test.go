package engine

import (
	"bytes"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/wscheck/pkg/logging"
)

// syncBuffer is an io.Writer safe for use as a log sink while the
// server goroutine is writing.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestControlTransport_ErrorSpillPreservesOrder(t *testing.T) {
	tr := newControlTransport(logging.Nop())

	// Push past the channel buffer, into the spill ring.
	const n = 20
	for i := 0; i < n; i++ {
		tr.pushErr(fmt.Errorf("failure %d", i))
	}

	errs := tr.drainErrors()
	require.Len(t, errs, n)
	for i, err := range errs {
		assert.Equal(t, fmt.Sprintf("failure %d", i), err.Error())
	}
	assert.Empty(t, tr.drainErrors(), "drain must leave nothing behind")
}

func TestControlTransport_HandshakeFailuresReachControlChannel(t *testing.T) {
	var logBuf syncBuffer
	log := logging.New(logging.Config{Level: logging.LevelDebug, Output: &logBuf})
	srv := startServer(t, Config{Transport: TransportControl}, WithLogger(log))
	addr := srv.Addr().String()

	// Upgrade requests with no websocket key fail the handshake; more of
	// them than the control channel buffers, so the spill engages too.
	const bad = 12
	for i := 0; i < bad; i++ {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		_, err = fmt.Fprintf(conn,
			"GET / HTTP/1.1\r\nHost: %s\r\nConnection: Upgrade\r\nUpgrade: websocket\r\n\r\n", addr)
		require.NoError(t, err)
		// Wait for the response so the handler has definitely run.
		_, _ = conn.Read(make([]byte, 1))
		require.NoError(t, conn.Close())
	}

	require.NoError(t, srv.Stop())
	assert.Equal(t, bad, strings.Count(logBuf.String(), "transport reported error"))
}
