package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmarsh/rsvp/internal/adapters/term"
	"github.com/dmarsh/rsvp/internal/app"
	"github.com/dmarsh/rsvp/internal/domain/stream"
	"github.com/dmarsh/rsvp/internal/platform/logger"
)

var (
	readFrom     int
	readWPM      int
	readNoResume bool
)

var readCmd = &cobra.Command{
	Use:   "read <file>",
	Short: "Open a document in the reader",
	Long:  "Opens a document in the full-screen reader, resuming from the last saved position unless --from or --no-resume is given.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRead,
}

func init() {
	readCmd.Flags().IntVar(&readFrom, "from", -1, "start at this word index (overrides saved position)")
	readCmd.Flags().IntVar(&readWPM, "wpm", 0, "words per minute (default 300, or RSVP_WPM)")
	readCmd.Flags().BoolVar(&readNoResume, "no-resume", false, "start from the beginning, ignoring saved position")
}

func runRead(cmd *cobra.Command, args []string) error {
	// The view owns the terminal, so logs go to a file instead of stderr.
	log := fileLogger()

	wpm := readWPM
	if wpm == 0 {
		wpm = envInt("RSVP_WPM", 300)
	}

	refresh := make(chan struct{}, 1)
	signal := func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	}

	var view *term.View
	engine, err := app.New(app.Config{
		DBPath: dbPath(),
		Timing: stream.FromWPM(wpm),
		Log:    log,
		Hooks: app.SchedulerHooks{
			OnWord:        func(string, int, int) { signal() },
			OnStateChange: func(bool) { signal() },
			OnComplete: func() {
				if view != nil {
					view.MarkComplete()
				}
				signal()
			},
			OnError: func(error) {
				if view != nil {
					view.MarkStalled()
				}
				signal()
			},
		},
	})
	if err != nil {
		return err
	}
	defer engine.Shutdown()

	start := readFrom
	if readNoResume && start < 0 {
		start = 0
	}
	if err := engine.Open(args[0], start); err != nil {
		return fmt.Errorf("cannot open %s: %w", args[0], err)
	}

	view, err = term.NewView(engine, refresh, wpm)
	if err != nil {
		return err
	}
	defer view.Close()

	return view.Run()
}

// fileLogger writes structured logs next to the database so they never
// interleave with the tcell screen.
func fileLogger() *slog.Logger {
	logPath := filepath.Join(filepath.Dir(dbPath()), "rsvp.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err == nil {
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
			return logger.New(logger.Config{Level: slog.LevelInfo, Format: "text", Output: f})
		}
	}
	return logger.New(logger.Config{Level: slog.LevelError, Format: "text", Output: os.Stderr})
}
