package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// SimpleWriter outputs a human-readable text summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with nothing to report are shown.
	showEmpty bool

	// verbose lists every failed item instead of the first few.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with every failed item.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// defaultFailureLines is how many failed items are listed without WithVerbose.
const defaultFailureLines = 10

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, summary)
	w.writeTotals(&sb, summary)
	w.writeErrors(&sb, summary)
	w.writeFailures(&sb, summary)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with crawl information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, s *Summary) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          FLEXIBLE CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seeds:     %s\n", strings.Join(s.Seeds, ", "))
	fmt.Fprintf(sb, "Started:   %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:  %s\n", s.Duration.Round(10*time.Millisecond))

	switch {
	case s.Error != "":
		fmt.Fprintf(sb, "Status:    STOPPED - %s\n", s.Error)
	case s.Aborted:
		sb.WriteString("Status:    ABORTED (partial results)\n")
	default:
		sb.WriteString("Status:    Complete\n")
	}
	sb.WriteString("\n")
}

// writeTotals writes the crawl counters.
func (w *SimpleWriter) writeTotals(sb *strings.Builder, s *Summary) {
	section(sb, "TOTALS")

	fmt.Fprintf(sb, "  DOCUMENTS: %d\n", s.Documents)
	fmt.Fprintf(sb, "  NAVIGATED: %d\n", s.Navigated)
	fmt.Fprintf(sb, "  ERRORS:    %d\n", s.Errors)
	if s.Queue != nil {
		fmt.Fprintf(sb, "  QUEUE:     %d ended, %d failed, %d pending, %d active\n",
			s.Queue.Ended, s.Queue.Failed, s.Queue.Pending, s.Queue.Active)
	}

	if len(s.DocumentsByStatus) > 0 {
		codes := make([]int, 0, len(s.DocumentsByStatus))
		for code := range s.DocumentsByStatus {
			codes = append(codes, code)
		}
		sort.Ints(codes)

		sb.WriteString("\n  By status:\n")
		for _, code := range codes {
			fmt.Fprintf(sb, "    %d: %d\n", code, s.DocumentsByStatus[code])
		}
	}
	sb.WriteString("\n")
}

// writeErrors writes the error counts by kind.
func (w *SimpleWriter) writeErrors(sb *strings.Builder, s *Summary) {
	if len(s.ErrorsByKind) == 0 && !w.showEmpty {
		return
	}

	section(sb, "ERRORS BY KIND")
	if len(s.ErrorsByKind) == 0 {
		sb.WriteString("  No errors\n\n")
		return
	}
	for _, kind := range s.Kinds() {
		fmt.Fprintf(sb, "  [!] %-14s %d\n", kind, s.ErrorsByKind[kind])
	}
	sb.WriteString("\n")
}

// writeFailures writes the items that ended with an error.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, s *Summary) {
	if len(s.Failures) == 0 && !w.showEmpty {
		return
	}

	section(sb, "FAILED ITEMS")
	if len(s.Failures) == 0 {
		sb.WriteString("  No failed items\n\n")
		return
	}

	failures := s.Failures
	if !w.verbose && len(failures) > defaultFailureLines {
		failures = failures[:defaultFailureLines]
	}
	for _, item := range failures {
		fmt.Fprintf(sb, "  * %s\n", item.URL)
		if item.Error != "" {
			fmt.Fprintf(sb, "    Error: %s\n", item.Error)
		}
	}
	if hidden := len(s.Failures) - len(failures); hidden > 0 {
		fmt.Fprintf(sb, "  ... and %d more (use --verbose to list all)\n", hidden)
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by flexible\n")
	sb.WriteString("https://github.com/liujianglc/flexible\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
