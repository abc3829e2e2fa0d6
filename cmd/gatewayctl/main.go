// Command gatewayctl inspects and exercises the AI provider gateway from a
// shell, using the same configuration as the API server.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
