package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/voicecode/voiced/internal/auth"
)

func keygenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "print the daemon's auth key, generating one if absent",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := dataDir()
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
			keyFile := filepath.Join(dir, "key")

			if force {
				if err := os.Remove(keyFile); err != nil && !os.IsNotExist(err) {
					return err
				}
			}

			key, err := auth.LoadOrGenerateKey(keyFile)
			if err != nil {
				return err
			}
			fmt.Println(key)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "regenerate the key even if one already exists")
	return cmd
}
