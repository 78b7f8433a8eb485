// Command vmopts resolves a VM command line into its final flag values.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Azhovan/vmopts"
)

func main() {
	err := newRootCommand().Execute()
	var exitErr *vmopts.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(vmopts.ExitCode(err))
}
