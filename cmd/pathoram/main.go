// Executable pathoram client. Run "pathoram init" to write a config, then
// "pathoram run" for an interactive session.
package main

import (
	"fmt"
	"os"

	"github.com/etclab/pathoram-client/cmd/pathoram/internal/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
