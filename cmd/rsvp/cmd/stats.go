package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Show word count, pages and saved position for a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	engine, err := newQuietEngine()
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	rec, err := engine.Library().Register(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("title:    %s\n", rec.Title)
	fmt.Printf("path:     %s\n", rec.Path)
	fmt.Printf("words:    %d\n", rec.Words)
	fmt.Printf("pages:    ~%d\n", rec.Pages)

	p, err := engine.Library().Progress(rec.ID)
	if err != nil {
		return err
	}
	if p == nil || rec.Words == 0 {
		fmt.Println("position: unread")
		return nil
	}
	fmt.Printf("position: word %d of %d (%.0f%%)\n",
		p.Index+1, rec.Words, float64(p.Index+1)/float64(rec.Words)*100)
	return nil
}
