package conformance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/wscheck/pkg/engine"
	"github.com/getmockd/wscheck/pkg/websocket"
)

func TestRun_DefaultScenario_BothTransports(t *testing.T) {
	for _, mode := range []engine.TransportMode{engine.TransportListener, engine.TransportControl} {
		t.Run(string(mode), func(t *testing.T) {
			report, err := Run(context.Background(), Params{Transport: mode})
			require.NoError(t, err)

			want := websocket.DefaultScenario().Lengths
			require.Len(t, report.Client, len(want))
			for i, n := range want {
				assert.True(t, report.Client[i].OK(), "round %d (len %d): %v", i, n, report.Client[i].Err)
				assert.Equal(t, n, report.Client[i].Length)
				assert.Equal(t, websocket.SideClient, report.Client[i].Side)
			}

			// The server-side echo responder recorded the same rounds.
			require.Len(t, report.Server, len(want))
			assert.Empty(t, report.Failures())
		})
	}
}

func TestRun_ServerInitiates(t *testing.T) {
	report, err := Run(context.Background(), Params{ServerInitiates: true})
	require.NoError(t, err)

	want := websocket.DefaultScenario().Lengths

	// The initiator ran detached on the server; its rounds arrive via
	// the recorder, collected after shutdown.
	require.Len(t, report.Server, len(want))
	for i, n := range want {
		assert.True(t, report.Server[i].OK(), "server round %d (len %d): %v", i, n, report.Server[i].Err)
		assert.Equal(t, n, report.Server[i].Length)
		assert.Equal(t, websocket.SideServer, report.Server[i].Side)
	}

	// The client echoed every round.
	require.Len(t, report.Client, len(want))
	assert.Empty(t, report.Failures())
}

func TestRun_CloseBeforeExit(t *testing.T) {
	report, err := Run(context.Background(), Params{
		Scenario: websocket.Scenario{Lengths: []int{10, 125, 126}, CloseBeforeExit: true},
	})
	require.NoError(t, err)

	// The first round completes; the connection is then closed, so the
	// next round fails its guarded write and the sequence aborts.
	require.Len(t, report.Client, 2)
	assert.True(t, report.Client[0].OK())
	assert.ErrorIs(t, report.Client[1].Err, websocket.ErrWriteFailed)
	assert.Equal(t, 125, report.Client[1].Length)
}

func TestRun_SkipZeroLength(t *testing.T) {
	report, err := Run(context.Background(), Params{
		Scenario:       websocket.Scenario{Lengths: []int{0, 10}},
		SkipZeroLength: true,
	})
	require.NoError(t, err)

	require.Len(t, report.Client, 1)
	assert.Equal(t, 10, report.Client[0].Length)
	assert.True(t, report.Client[0].OK())
}

func TestRun_MalformedScenarioFailsFast(t *testing.T) {
	t.Run("negative length", func(t *testing.T) {
		_, err := Run(context.Background(), Params{
			Scenario: websocket.Scenario{Lengths: []int{-5}},
		})
		assert.ErrorIs(t, err, websocket.ErrNegativeLength)
	})

	t.Run("skip empties the sequence", func(t *testing.T) {
		_, err := Run(context.Background(), Params{
			Scenario:       websocket.Scenario{Lengths: []int{0}},
			SkipZeroLength: true,
		})
		assert.ErrorIs(t, err, websocket.ErrEmptyScenario)
	})
}

func TestRun_ExternalEndpoint(t *testing.T) {
	// Stand the server up ourselves and point Run at it like a remote
	// endpoint; no server lifecycle inside Run, no server-side results.
	srv := engine.NewServer(engine.Config{})
	require.NoError(t, srv.Start())
	defer srv.Stop()

	report, err := Run(context.Background(), Params{
		URL:      srv.URL(),
		Scenario: websocket.Scenario{Lengths: []int{10, 126}},
	})
	require.NoError(t, err)

	require.Len(t, report.Client, 2)
	assert.Empty(t, report.Server, "remote runs cannot observe server-side results")
	assert.Empty(t, report.Failures())
}

func TestRun_TimeoutAgainstSilentEndpoint(t *testing.T) {
	// An endpoint that completes the handshake but never echoes must not
	// stall the run past its deadline.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := ws.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(ws.StatusNormalClosure, "")
		for {
			if _, _, err := c.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	start := time.Now()
	report, err := Run(context.Background(), Params{
		URL:      "ws" + strings.TrimPrefix(ts.URL, "http"),
		Scenario: websocket.Scenario{Lengths: []int{10}},
		Timeout:  300 * time.Millisecond,
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)

	// The round blocked on its echo surfaces as a failed read.
	require.NotNil(t, report)
	require.NotEmpty(t, report.Client)
	assert.ErrorIs(t, report.Client[0].Err, websocket.ErrReadFailed)
}

func TestRun_DialFailure(t *testing.T) {
	_, err := Run(context.Background(), Params{
		URL:      "ws://127.0.0.1:1", // nothing listens here
		Scenario: websocket.Scenario{Lengths: []int{10}},
	})
	assert.Error(t, err)
}
