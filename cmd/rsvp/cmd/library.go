package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmarsh/rsvp/internal/app"
	"github.com/dmarsh/rsvp/internal/platform/logger"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "List registered documents",
	RunE:  runLibrary,
}

func runLibrary(cmd *cobra.Command, args []string) error {
	engine, err := newQuietEngine()
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	recs, err := engine.Library().List()
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("library is empty — add a document with: rsvp read <file>")
		return nil
	}

	fmt.Printf("%-30s %8s %6s %9s  %s\n", "TITLE", "WORDS", "PAGES", "POSITION", "PATH")
	for _, rec := range recs {
		pos := "—"
		if p, err := engine.Library().Progress(rec.ID); err == nil && p != nil && rec.Words > 0 {
			pos = fmt.Sprintf("%.0f%%", float64(p.Index+1)/float64(rec.Words)*100)
		}
		fmt.Printf("%-30.30s %8d %6d %9s  %s\n", rec.Title, rec.Words, rec.Pages, pos, rec.Path)
	}
	return nil
}

// newQuietEngine builds an engine for one-shot commands that print to
// stdout; logs above warning still reach stderr.
func newQuietEngine() (*app.Engine, error) {
	log := logger.New(logger.Config{Level: slog.LevelWarn, Format: "text", Output: os.Stderr})
	return app.New(app.Config{DBPath: dbPath(), Log: log})
}
