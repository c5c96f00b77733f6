package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seriesdl/seriesdl/internal/clipboard"
	"github.com/seriesdl/seriesdl/internal/config"
	"github.com/seriesdl/seriesdl/internal/linkstore"
)

// addCmd appends a link to a series list without starting a run. With no
// URL argument the clipboard is consulted.
var addCmd = &cobra.Command{
	Use:   "add <series> [url]",
	Short: "Append a link to a series list",
	Long: `Append an https URL as a new pending line to <series>.links,
creating the list if it does not exist yet. When the URL argument is
omitted, the clipboard content is used if it holds a valid https URL.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		workDir, err := os.Getwd()
		if err != nil {
			return err
		}

		var rawurl string
		if len(args) == 2 {
			rawurl = clipboard.NewValidator().ExtractURL(args[1])
			if rawurl == "" {
				return fmt.Errorf("not a valid https URL: %s", args[1])
			}
		} else {
			rawurl = clipboard.ReadURL()
			if rawurl == "" {
				return fmt.Errorf("clipboard does not contain a valid https URL")
			}
		}

		listPath := args[0]
		if !strings.HasSuffix(listPath, config.LinksExt) {
			listPath += config.LinksExt
		}
		if !filepath.IsAbs(listPath) {
			listPath = filepath.Join(workDir, listPath)
		}

		// Create the list on first use.
		f, err := os.OpenFile(listPath, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to create link list: %w", err)
		}
		f.Close()

		store, err := linkstore.Open(listPath)
		if err != nil {
			return err
		}
		if err := store.Append(rawurl); err != nil {
			return err
		}

		fmt.Printf("Added to %s: %s\n", listPath, rawurl)
		return nil
	},
}
