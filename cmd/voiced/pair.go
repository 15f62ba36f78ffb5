package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"github.com/voicecode/voiced/internal/auth"
	"golang.org/x/term"
)

func pairCmd() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "pair",
		Short: "display the connection key and a QR code for mobile pairing",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := dataDir()
			key, err := auth.LoadOrGenerateKey(filepath.Join(dir, "key"))
			if err != nil {
				return err
			}

			payload := fmt.Sprintf("voice-code://%s?key=%s", listen, key)
			fmt.Println("Connection key:", key)
			fmt.Println("Listen address:", listen)

			if !isTerminalWide() {
				fmt.Println(payload)
				return nil
			}

			qr, err := qrcode.New(payload, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("rendering QR code: %w", err)
			}
			fmt.Println(qr.ToSmallString(false))
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:7777", "address the daemon listens on")
	return cmd
}

// isTerminalWide decides whether to render the QR code as terminal art
// (only meaningful on an interactive, sufficiently wide TTY) or fall back
// to printing the raw pairing payload.
func isTerminalWide() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return false
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return false
	}
	return width >= 40
}
