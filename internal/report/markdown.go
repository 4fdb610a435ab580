package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/liujianglc/flexible/internal/crawler"
)

// MarkdownWriter outputs summaries in Markdown format for documentation
// and sharing.
type MarkdownWriter struct {
	baseWriter

	// maxFailures caps the failures table. Zero means no cap.
	maxFailures int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxFailures limits the number of failed items listed.
func WithMaxFailures(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.maxFailures = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary)
	w.writeCounts(md, summary)
	w.writeErrors(md, summary)
	w.writeFailures(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the crawl information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s *Summary) {
	md.H1("Crawl Report")
	md.PlainText("")

	seeds := "-"
	if len(s.Seeds) > 0 {
		seeds = ""
		for i, seed := range s.Seeds {
			if i > 0 {
				seeds += ", "
			}
			seeds += "`" + seed + "`"
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seeds", seeds},
			{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", s.Duration.Round(10 * time.Millisecond).String()},
			{"Status", w.getStatusText(s)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on how the crawl ended.
func (w *MarkdownWriter) getStatusText(s *Summary) string {
	switch {
	case s.Error != "":
		return "❌ Stopped - " + s.Error
	case s.Aborted:
		return "⚠️ Aborted (partial results)"
	default:
		return "✅ Complete"
	}
}

// writeCounts writes the crawl totals and documents per status code.
func (w *MarkdownWriter) writeCounts(md *markdown.Markdown, s *Summary) {
	md.H2("Totals")
	md.PlainText("")

	rows := [][]string{
		{"Documents", strconv.FormatInt(s.Documents, 10)},
		{"Navigated", strconv.FormatInt(s.Navigated, 10)},
		{"Errors", strconv.FormatInt(s.Errors, 10)},
	}
	if s.Queue != nil {
		rows = append(rows,
			[]string{"Queue ended", strconv.Itoa(s.Queue.Ended)},
			[]string{"Queue failed", strconv.Itoa(s.Queue.Failed)},
			[]string{"Queue left pending", strconv.Itoa(s.Queue.Pending)},
		)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(s.DocumentsByStatus) == 0 {
		return
	}

	codes := make([]int, 0, len(s.DocumentsByStatus))
	for code := range s.DocumentsByStatus {
		codes = append(codes, code)
	}
	sort.Ints(codes)

	statusRows := make([][]string, len(codes))
	for i, code := range codes {
		statusRows[i] = []string{strconv.Itoa(code), strconv.Itoa(s.DocumentsByStatus[code])}
	}
	md.H3("Documents by status")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Documents"},
		Rows:   statusRows,
	})
	md.PlainText("")
}

// writeErrors writes the error kinds with a pie chart and an alert.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, s *Summary) {
	md.H2("Errors")
	md.PlainText("")

	if len(s.ErrorsByKind) == 0 {
		md.Tip("No errors were reported during the crawl.")
		md.PlainText("")
		return
	}

	kinds := s.Kinds()
	rows := make([][]string, len(kinds))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Errors by kind"),
		piechart.WithShowData(true),
	)
	for i, kind := range kinds {
		n := s.ErrorsByKind[kind]
		rows[i] = []string{kind, strconv.Itoa(n)}
		chart.LabelAndIntValue(kind, uint64(n)) //nolint:gosec // counts are never negative
	}

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	if s.ErrorsByKind[crawler.KindStore] > 0 {
		md.Cautionf("The queue store failed %d time(s). The crawl may be incomplete.", s.ErrorsByKind[crawler.KindStore])
	} else if s.Documents == 0 {
		md.Warningf("No document was fetched successfully.")
	} else {
		md.Note(fmt.Sprintf("%d error(s) were reported for %d document(s).", s.Errors, s.Documents))
	}
	md.PlainText("")
}

// writeFailures writes the items that ended with an error.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, s *Summary) {
	if len(s.Failures) == 0 {
		return
	}

	md.H2("Failed Items")
	md.PlainText("")

	failures := s.Failures
	if w.maxFailures > 0 && len(failures) > w.maxFailures {
		failures = failures[:w.maxFailures]
	}

	rows := make([][]string, len(failures))
	for i, item := range failures {
		rows[i] = []string{
			truncateString(item.URL, 60),
			truncateString(item.Error, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Error"},
		Rows:   rows,
	})
	md.PlainText("")

	if hidden := len(s.Failures) - len(failures); hidden > 0 {
		md.PlainTextf("*%d more not shown.*", hidden)
		md.PlainText("")
	}
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [flexible](https://github.com/liujianglc/flexible)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
