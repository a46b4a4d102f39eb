package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset <file>",
	Short: "Forget the saved position for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

func runReset(cmd *cobra.Command, args []string) error {
	engine, err := newQuietEngine()
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	if err := engine.Library().Reset(args[0]); err != nil {
		return err
	}
	fmt.Printf("progress cleared for %s\n", args[0])
	return nil
}
