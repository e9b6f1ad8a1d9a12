// Command gateway is the composition root for the open-responses gateway:
// it wires config, provider routing, the tool-call loop, persistence and
// telemetry together behind the chi HTTP surface in internal/httpapi.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
