package scrub

import (
	"fmt"
	"io"
)

// Reporter receives per-file notices as a run progresses.
type Reporter interface {
	FileModified(r Result, dryRun bool)
	FileFailed(r Result)
}

// NopReporter discards all notices
type NopReporter struct{}

func (NopReporter) FileModified(Result, bool) {}
func (NopReporter) FileFailed(Result)         {}

// ConsoleReporter prints one line per modified or failed file
type ConsoleReporter struct {
	Out io.Writer
}

func (r ConsoleReporter) FileModified(res Result, dryRun bool) {
	if dryRun {
		fmt.Fprintf(r.Out, "Would clean: %s\n", res.Path)
		return
	}
	fmt.Fprintf(r.Out, "Cleaned: %s\n", res.Path)
}

func (r ConsoleReporter) FileFailed(res Result) {
	fmt.Fprintf(r.Out, "Error processing %s: %v\n", res.Path, res.Err)
}

// PrintSummary writes the end-of-run summary block
func PrintSummary(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "\nSummary:\n")
	fmt.Fprintf(w, "  Files processed: %d\n", s.Examined)
	fmt.Fprintf(w, "  Files modified: %d\n", s.Modified)
	if s.Failed > 0 {
		fmt.Fprintf(w, "  Files failed: %d\n", s.Failed)
	}
	if s.DryRun {
		fmt.Fprintf(w, "  (dry run, no files were written)\n")
	}
}
