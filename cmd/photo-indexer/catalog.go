package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/database"
)

func newCatalogCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the photo catalog",
	}

	cmd.AddCommand(
		newCatalogListCommand(a),
		newCatalogShowCommand(a),
		newCatalogStatsCommand(a),
	)
	return cmd
}

// openCatalog opens the configured catalog for a read command.
func (a *app) openCatalog(ctx context.Context) (*database.Database, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, &exitError{code: exitFailure, err: err}
	}
	return db, nil
}

func newCatalogListCommand(a *app) *cobra.Command {
	var (
		filter catalog.Filter
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog entries ordered by capture time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			entries, err := db.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			return writeEntryTable(cmd.OutOrStdout(), entries)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&filter.PathPrefix, "prefix", "", "only entries under this library path")
	flags.StringVar(&filter.ContentHash, "hash", "", "only entries with this content hash")
	flags.IntVar(&filter.Limit, "limit", 50, "maximum entries to show (0 = all)")
	flags.IntVar(&filter.Offset, "offset", 0, "entries to skip")
	flags.BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newCatalogShowCommand(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <path>",
		Short: "Show one catalog entry by library-relative path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			entry, err := db.GetByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entry)
			}

			dupes, err := db.GetByHash(cmd.Context(), entry.ContentHash)
			if err != nil {
				return err
			}
			return writeEntryDetail(cmd.OutOrStdout(), entry, dupes)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func newCatalogStatsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog totals and the last scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openCatalog(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			stats, err := db.Stats(cmd.Context())
			if err != nil {
				return err
			}
			last, ok, err := db.GetLastScan(cmd.Context())
			if err != nil {
				return err
			}
			writeStats(cmd.OutOrStdout(), stats, last, ok)
			return nil
		},
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	if header != nil {
		table.SetHeader(header)
	}
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func writeEntryTable(w io.Writer, entries []catalog.Entry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No catalog entries found.")
		return nil
	}

	table := newTable(w, []string{"Path", "Hash", "Captured", "Source", "Size", "Dimensions", "Thumb"})
	for _, e := range entries {
		table.Append([]string{
			truncate(e.RelativePath, 60),
			shortHash(e.ContentHash),
			formatTime(e.CaptureTimestamp),
			string(e.TimestampSource),
			formatSize(e.FileSizeBytes),
			formatDimensions(e),
			yesNo(e.ThumbnailReady),
		})
	}
	table.Render()
	return nil
}

func writeEntryDetail(w io.Writer, e catalog.Entry, sameContent []catalog.Entry) error {
	table := newTable(w, nil)
	table.AppendBulk([][]string{
		{"ID", strconv.FormatInt(e.ID, 10)},
		{"Path", e.RelativePath},
		{"Filename", e.Filename},
		{"Content hash", e.ContentHash},
		{"MIME type", e.MimeType},
		{"Captured", formatTime(e.CaptureTimestamp)},
		{"Timestamp source", string(e.TimestampSource)},
		{"Dimensions", formatDimensions(e)},
		{"Orientation", strconv.Itoa(e.Orientation)},
		{"Size", formatSize(e.FileSizeBytes)},
		{"Thumbnail ready", yesNo(e.ThumbnailReady)},
		{"Added", formatTime(e.AddedAt)},
		{"Updated", formatTime(e.UpdatedAt)},
	})
	for _, other := range sameContent {
		if other.RelativePath != e.RelativePath {
			table.Append([]string{"Same content", other.RelativePath})
		}
	}
	table.Render()
	return nil
}

func writeStats(w io.Writer, s catalog.Stats, last database.ScanRecord, hasLast bool) {
	table := newTable(w, nil)
	table.AppendBulk([][]string{
		{"Entries", strconv.Itoa(s.TotalEntries)},
		{"Thumbnails ready", strconv.Itoa(s.ThumbnailsReady)},
		{"Distinct content", strconv.Itoa(s.DistinctHashes)},
		{"Total size", formatSize(s.TotalBytes)},
		{"Last updated", formatTime(s.LastUpdated)},
	})
	if hasLast {
		status := "completed"
		if last.Aborted {
			status = "aborted"
		}
		table.AppendBulk([][]string{
			{"Last scan", fmt.Sprintf("%s (%s, %v)", formatTime(last.StartedAt), status, last.Duration.Round(time.Millisecond))},
			{"Last scan counts", fmt.Sprintf("added=%d updated=%d skipped=%d errors=%d",
				last.Added, last.Updated, last.Skipped, last.Errors)},
		})
	} else {
		table.Append([]string{"Last scan", "never"})
	}
	table.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncate keeps the tail of long paths, where the filename is.
func truncate(s string, width int) string {
	if len(s) <= width {
		return s
	}
	return "..." + s[len(s)-width+3:]
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func formatDimensions(e catalog.Entry) string {
	if e.Width == nil || e.Height == nil {
		return "-"
	}
	return fmt.Sprintf("%dx%d", *e.Width, *e.Height)
}

func formatSize(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
