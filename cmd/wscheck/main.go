// wscheck CLI - command-line interface for the WebSocket conformance harness
package main

import (
	"fmt"
	"os"

	"github.com/getmockd/wscheck/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
