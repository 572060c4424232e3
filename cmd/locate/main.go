// Command locate runs the permission-gated location screen against a
// terminal host.
package main

import (
	"fmt"
	"os"

	"github.com/go-drift/locate/cmd/locate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
