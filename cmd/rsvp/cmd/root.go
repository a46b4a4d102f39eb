package cmd

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "rsvp",
	Short:        "rsvp — rapid serial reader",
	Long:         "Streams a document one word at a time at a controllable pace, with seeking and resumable progress.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Optional .env in the working directory; real env wins.
	_ = godotenv.Load()

	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(libraryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(removeCmd)
}

// dbPath returns the bbolt database location: RSVP_DB, or ~/.rsvp/rsvp.db.
func dbPath() string {
	if p := os.Getenv("RSVP_DB"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".rsvp.db"
	}
	return filepath.Join(home, ".rsvp", "rsvp.db")
}

// envInt reads an integer environment variable, falling back on absence
// or parse failure.
func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
