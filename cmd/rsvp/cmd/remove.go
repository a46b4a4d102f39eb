package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <file>",
	Short: "Drop a document from the library, including its saved position",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	engine, err := newQuietEngine()
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	if err := engine.Library().Remove(args[0]); err != nil {
		return err
	}
	fmt.Printf("removed %s\n", args[0])
	return nil
}
