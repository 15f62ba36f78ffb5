// Command voiced runs the voice-code daemon: a backend that mediates
// between a remote mobile client and a local coding agent.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "voiced",
		Short: "voice-code backend daemon",
	}

	rootCmd.AddCommand(serveCmd(), keygenCmd(), pairCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// dataDir resolves $HOME/.voiced, falling back to /tmp/.voiced with a
// warning when $HOME is unset.
func dataDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		fmt.Fprintln(os.Stderr, "[voiced] ERROR: $HOME environment variable is not set")
		fmt.Fprintln(os.Stderr, "[voiced] WARNING: using insecure fallback directory /tmp/.voiced")
		return "/tmp/.voiced"
	}
	return filepath.Join(home, ".voiced")
}
