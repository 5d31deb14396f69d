package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"photo-indexer/internal/thumbnail"
)

var errTerminalOutput = errors.New("refusing to write image data to a terminal; use -o or redirect stdout")

func newThumbnailCommand(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "thumbnail <hash>",
		Short: "Write the thumbnail for a content hash",
		Long: `Writes the JPEG thumbnail stored for a content hash to a file or to
stdout. Binary output to a terminal is refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			thumbs := thumbnail.New(cfg.ThumbnailDir)
			return copyThumbnail(thumbs, args[0], output, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

// copyThumbnail copies the artifact for hash to output, or to stdout when
// output is empty.
func copyThumbnail(thumbs *thumbnail.Generator, hash, output string, stdout io.Writer) (err error) {
	if output == "" && isTerminal(stdout) {
		return errTerminalOutput
	}

	rc, err := thumbs.Open(hash)
	if err != nil {
		return fmt.Errorf("thumbnail %s: %w", hash, err)
	}
	defer rc.Close()

	w := stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}

	_, err = io.Copy(w, rc)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
