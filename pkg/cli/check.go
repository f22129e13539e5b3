package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/wscheck/pkg/conformance"
	"github.com/getmockd/wscheck/pkg/engine"
	"github.com/getmockd/wscheck/pkg/websocket"
)

// checkFlags holds the flag values for the check command.
type checkFlags struct {
	url             string
	addr            string
	port            int
	transport       string
	lengths         string
	closeEarly      bool
	serverInitiates bool
	skipZeroLength  bool
	timeout         time.Duration
}

var checkFlagVals checkFlags

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a conformance scenario",
	Long: `Run one full conformance scenario: start a local harness server
(or target an external endpoint with --url), open a client connection,
exchange one echo round per configured message length, and report the
outcome of every round. Exits non-zero when any round fails.`,
	Example: `  # Check a locally started server with the default lengths
  wscheck check

  # Check an external endpoint, skipping the empty-message round
  wscheck check --url ws://echo.example.net --skip-zero-length

  # Let the server start the conversation
  wscheck check --server-initiates`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(&checkFlagVals)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkFlagVals.url, "url", "", "external ws:// endpoint (default: start a local server)")
	checkCmd.Flags().StringVar(&checkFlagVals.addr, "addr", "127.0.0.1", "local server listen address")
	checkCmd.Flags().IntVar(&checkFlagVals.port, "port", 0, "local server listen port (0 picks a free port)")
	checkCmd.Flags().StringVar(&checkFlagVals.transport, "transport", string(engine.TransportListener),
		"local server transport mode (listener, control)")
	checkCmd.Flags().StringVar(&checkFlagVals.lengths, "lengths", "", "comma-separated message lengths (default: boundary sequence)")
	checkCmd.Flags().BoolVar(&checkFlagVals.closeEarly, "close-early", false, "close the connection after the first round")
	checkCmd.Flags().BoolVar(&checkFlagVals.serverInitiates, "server-initiates", false, "ask the server to start the conversation")
	checkCmd.Flags().BoolVar(&checkFlagVals.skipZeroLength, "skip-zero-length", false, "skip the zero-length round")
	checkCmd.Flags().DurationVar(&checkFlagVals.timeout, "timeout", 30*time.Second, "overall scenario timeout")
}

// parseLengths parses a comma-separated length list such as "0,10,125".
func parseLengths(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid length %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func runCheck(flags *checkFlags) error {
	log := newLogger()

	lengths, err := parseLengths(flags.lengths)
	if err != nil {
		return err
	}

	report, err := conformance.Run(context.Background(), conformance.Params{
		URL:             flags.url,
		Addr:            flags.addr,
		Port:            flags.port,
		Transport:       engine.TransportMode(flags.transport),
		Scenario:        websocket.Scenario{Lengths: lengths, CloseBeforeExit: flags.closeEarly},
		ServerInitiates: flags.serverInitiates,
		SkipZeroLength:  flags.skipZeroLength,
		Timeout:         flags.timeout,
		Logger:          log,
	})
	if err != nil {
		return err
	}

	printResults(os.Stdout, "client", report.Client)
	printResults(os.Stdout, "server", report.Server)

	if failures := report.Failures(); len(failures) > 0 {
		return fmt.Errorf("%d of %d rounds failed", len(failures), len(report.Client)+len(report.Server))
	}
	fmt.Fprintln(os.Stdout, "all rounds passed")
	return nil
}

func printResults(w io.Writer, side string, results []websocket.RoundResult) {
	for _, r := range results {
		status := "ok"
		if !r.OK() {
			status = r.Err.Error()
		}
		fmt.Fprintf(w, "%-6s len=%-6d %s\n", side, r.Length, status)
	}
}
