// spotkey - spectral annotation and alignment refinement tool
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/spotkey/cmd/spotkey/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
