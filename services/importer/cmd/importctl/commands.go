package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/example/anime-import/services/importer/internal/anime"
	"github.com/example/anime-import/services/importer/internal/config"
	"github.com/example/anime-import/services/importer/internal/importer"
)

var draftCmd = &cobra.Command{
	Use:   "draft <url>",
	Short: "Fetch and print the normalized draft for an AniList or MyAnimeList URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pv, err := imp.Pipeline.Draft(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if err := writeJSON(out, pv.Draft); err != nil {
			return err
		}
		if a := pv.Draft.Cover.Artifact; a != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "cover: %s\n", describe(a))
		}
		if pv.CoverErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "cover not materialized: %v\n", pv.CoverErr)
		}
		return nil
	},
}

var coverCmd = &cobra.Command{
	Use:   "cover <url>",
	Short: "Download the canonical cover for an AniList, MyAnimeList or Bangumi URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := imp.Pipeline.Cover(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		dest, _ := cmd.Flags().GetString("output")
		if dest == "" {
			dest = a.Filename
		} else if fi, err := os.Stat(dest); err == nil && fi.IsDir() {
			dest = filepath.Join(dest, a.Filename)
		}
		if err := os.WriteFile(dest, a.Data, 0o644); err != nil {
			return fmt.Errorf("write cover: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s: %s\n", dest, describe(a))
		return nil
	},
}

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Import every URL listed in a file (one per line) and persist the records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		asJSON, _ := cmd.Flags().GetBool("json")
		if v.GetString("records-backend") == config.RecordsHTTP && v.GetString("records-url") == "" {
			return errors.New("--records-url (RECORDS_BASE_URL) is required for bulk imports")
		}

		var (
			text []byte
			err  error
		)
		if file == "" || file == "-" {
			text, err = io.ReadAll(cmd.InOrStdin())
		} else {
			text, err = os.ReadFile(file)
		}
		if err != nil {
			return fmt.Errorf("read urls: %w", err)
		}

		report, err := imp.Pipeline.Bulk(cmd.Context(), string(text))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if asJSON {
			return writeJSON(out, report)
		}
		for _, it := range report.Items {
			switch it.Status {
			case importer.ItemSucceeded:
				fmt.Fprintf(out, "ok    %-40s %s\n", it.Label(), it.Slug)
				if it.CoverError != "" {
					fmt.Fprintf(out, "      cover skipped: %s\n", it.CoverError)
				}
			default:
				fmt.Fprintf(out, "FAIL  %-40s %s\n", it.Label(), it.Error)
			}
		}
		fmt.Fprintf(out, "\n%d/%d imported, %d failed (batch %s)\n", report.Succeeded, report.Total, report.Failed, report.BatchID)
		if report.CacheError != "" {
			fmt.Fprintf(out, "cache invalidation failed: %s\n", report.CacheError)
		}
		if report.Failed > 0 {
			return fmt.Errorf("%d of %d items failed", report.Failed, report.Total)
		}
		return nil
	},
}

func init() {
	coverCmd.Flags().StringP("output", "o", "", "output file or directory (default: synthetic filename)")
	bulkCmd.Flags().StringP("file", "f", "", "file with one URL per line (default: stdin)")
	bulkCmd.Flags().Bool("json", false, "print the full report as JSON")
}

func describe(a *anime.Artifact) string {
	s := fmt.Sprintf("%s, %s", a.MIMEType, humanize.Bytes(uint64(len(a.Data))))
	if a.Width > 0 {
		s += fmt.Sprintf(", %dx%d", a.Width, a.Height)
	}
	if a.Canonical {
		return s + ", canonical"
	}
	if a.Fallback != "" {
		return s + ", original bytes (" + a.Fallback + ")"
	}
	return s + ", original bytes"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
