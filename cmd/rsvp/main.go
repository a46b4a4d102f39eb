// rsvp is a rapid serial word-presentation reader for the terminal.
// It streams a document one word at a time at a controllable pace and
// remembers where you stopped.
package main

import (
	"os"

	"github.com/dmarsh/rsvp/cmd/rsvp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
