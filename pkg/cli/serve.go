package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/wscheck/pkg/engine"
)

// serveFlags holds the flag values for the serve command.
type serveFlags struct {
	addr      string
	port      int
	transport string
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the harness server in the foreground",
	Long: `Run the harness server until interrupted. Upgrade requests are
answered by the echo responder (or by the conversation initiator when
the client offers the server-initiates subprotocol); every other
request gets a fixed 200 response.`,
	Example: `  # Serve on the default port
  wscheck serve --port 9090

  # Use the control-channel transport
  wscheck serve --port 9090 --transport control`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(&serveFlagVals)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlagVals.addr, "addr", "127.0.0.1", "listen address")
	serveCmd.Flags().IntVar(&serveFlagVals.port, "port", 9090, "listen port (0 picks a free port)")
	serveCmd.Flags().StringVar(&serveFlagVals.transport, "transport", string(engine.TransportListener),
		"transport mode (listener, control)")
}

func runServe(flags *serveFlags) error {
	log := newLogger()

	srv := engine.NewServer(engine.Config{
		Addr:      flags.addr,
		Port:      flags.port,
		Transport: engine.TransportMode(flags.transport),
	}, engine.WithLogger(log))

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	fmt.Fprintf(os.Stdout, "listening on %s\n", srv.URL())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	return srv.Stop()
}
