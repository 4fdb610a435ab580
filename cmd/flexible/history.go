package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liujianglc/flexible/internal/config"
	"github.com/liujianglc/flexible/internal/database"
	"github.com/liujianglc/flexible/internal/report"
)

// NewHistoryCmd creates the history command and its subcommands.
// They read the page archive written by 'flexible crawl --record'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded crawls, pages and links",
		Long: `History reads the page archive written by 'flexible crawl --record'.

Without a subcommand it lists the recorded crawl runs, most recent first.

Examples:
  # List recorded crawl runs
  flexible history

  # List archived pages of a host
  flexible history pages example.com

  # Show one archived page
  flexible history page https://example.com/about

  # List the pages linking to a URL
  flexible history links --to https://example.com/about`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.PersistentFlags().String("db-dir", "",
		"Directory of the page archive (default: XDG data directory)")
	cmd.PersistentFlags().BoolP("json", "j", false,
		"Output in JSON format")

	cmd.AddCommand(newHistoryPagesCmd())
	cmd.AddCommand(newHistoryPageCmd())
	cmd.AddCommand(newHistoryLinksCmd())

	return cmd
}

func newHistoryPagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pages [host]",
		Short: "List archived pages, optionally of one host",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := ""
			if len(args) == 1 {
				host = strings.ToLower(args[0])
			}
			return withArchive(cmd, func(db *database.PageDB, out io.Writer, jsonOutput bool) error {
				pages, err := db.ListPages(cmd.Context(), host)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, pages)
				}
				return listPages(out, pages)
			})
		},
	}
}

func newHistoryPageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page <url>",
		Short: "Show one archived page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(cmd, func(db *database.PageDB, out io.Writer, jsonOutput bool) error {
				page, err := db.GetPage(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if page == nil {
					return fmt.Errorf("page not archived: %s", args[0])
				}
				if jsonOutput {
					return writeJSON(out, page)
				}
				showPage(out, page)
				return nil
			})
		},
	}
}

func newHistoryLinksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "List archived links between pages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := cmd.Flags().GetString("from")
			if err != nil {
				return err
			}
			to, err := cmd.Flags().GetString("to")
			if err != nil {
				return err
			}
			if from == "" && to == "" {
				return errors.New("at least one of --from and --to is required")
			}
			return withArchive(cmd, func(db *database.PageDB, out io.Writer, jsonOutput bool) error {
				links, err := db.QueryLinks(cmd.Context(), from, to)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, links)
				}
				listLinks(out, links)
				return nil
			})
		},
	}
	cmd.Flags().String("from", "", "Only links found on this page")
	cmd.Flags().String("to", "", "Only links to this URL")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	return withArchive(cmd, func(db *database.PageDB, out io.Writer, jsonOutput bool) error {
		runs, err := db.ListRuns(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, runs)
		}
		count, err := db.CountPages(cmd.Context())
		if err != nil {
			return err
		}
		return listRuns(out, runs, count)
	})
}

// withArchive opens the page archive selected by the history flags and
// calls fn with it. A missing archive is an error rather than being created.
func withArchive(cmd *cobra.Command, fn func(db *database.PageDB, out io.Writer, jsonOutput bool) error) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(dbDir, opts)
	if err != nil {
		return fmt.Errorf("failed to open page archive (run 'flexible crawl --record' first): %w", err)
	}
	defer db.Close()

	return fn(db, cmd.OutOrStdout(), jsonOutput)
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// listRuns prints one line per run with the totals of its summary.
func listRuns(out io.Writer, runs []database.RunRecord, pageCount int) error {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs recorded.")
		fmt.Fprintln(out, "\nUse 'flexible crawl --record <url>' to record a crawl.")
		return nil
	}

	fmt.Fprintf(out, "Crawl runs (%d), %d pages archived:\n\n", len(runs), pageCount)
	fmt.Fprintf(out, "  %-6s  %-20s  %-10s  %-9s  %-7s  %s\n", "ID", "Started", "Duration", "Documents", "Errors", "Seeds")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))

	for _, run := range runs {
		var summary report.Summary
		if err := json.Unmarshal(run.Summary, &summary); err != nil {
			return fmt.Errorf("run %d: invalid summary: %w", run.ID, err)
		}
		status := ""
		if !summary.Complete() {
			status = " (incomplete)"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-10s  %-9d  %-7d  %s%s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.FinishedAt.Sub(run.StartedAt).String(),
			summary.Documents,
			summary.Errors,
			strings.Join(run.Seeds, ", "),
			status,
		)
	}
	return nil
}

func listPages(out io.Writer, pages []database.PageRecord) error {
	if len(pages) == 0 {
		fmt.Fprintln(out, "No pages archived.")
		return nil
	}

	fmt.Fprintf(out, "Archived pages (%d):\n\n", len(pages))
	fmt.Fprintf(out, "  %-6s  %-20s  %s\n", "Status", "Fetched", "URL")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 60))
	for _, p := range pages {
		fmt.Fprintf(out, "  %-6d  %-20s  %s\n",
			p.StatusCode,
			p.Timestamp.Local().Format("2006-01-02 15:04:05"),
			p.URL,
		)
	}
	return nil
}

func showPage(out io.Writer, p *database.PageRecord) {
	fmt.Fprintf(out, "URL:          %s\n", p.URL)
	fmt.Fprintf(out, "Host:         %s\n", p.Host)
	fmt.Fprintf(out, "Fetched:      %s\n", p.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Status:       %d\n", p.StatusCode)
	fmt.Fprintf(out, "Content-Type: %s\n", p.ContentType)
	fmt.Fprintf(out, "Title:        %s\n", p.Title)
	fmt.Fprintf(out, "Size:         %d bytes\n", p.Size)
	fmt.Fprintf(out, "SHA3-256:     %s\n", p.Hash)
}

func listLinks(out io.Writer, links []database.Link) {
	if len(links) == 0 {
		fmt.Fprintln(out, "No links found.")
		return
	}
	fmt.Fprintf(out, "Links (%d):\n\n", len(links))
	for _, l := range links {
		fmt.Fprintf(out, "  %s -> %s\n", l.FromURL, l.ToURL)
	}
}
