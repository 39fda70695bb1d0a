package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweep subsystem metrics
var (
	// RunDuration tracks how long sweep runs take
	RunDuration prometheus.Histogram

	// FilesExaminedTotal tracks files read and checked for target glyphs
	FilesExaminedTotal prometheus.Counter

	// FilesModifiedTotal tracks files rewritten (or that would be, in dry-run)
	FilesModifiedTotal prometheus.Counter

	// FileErrorsTotal tracks files that could not be processed, by cause
	FileErrorsTotal *prometheus.CounterVec

	// GlyphsRemovedTotal tracks individual glyph occurrences stripped
	GlyphsRemovedTotal prometheus.Counter

	// BytesSavedTotal tracks bytes dropped from rewritten files
	BytesSavedTotal prometheus.Counter

	// FileSizeBytes tracks the size of examined files
	FileSizeBytes prometheus.Histogram

	// LastRunTimestamp records Unix timestamp of the last completed run
	LastRunTimestamp prometheus.Gauge

	// LastRunFiles records the examined/modified/failed counts of the last run
	LastRunFiles *prometheus.GaugeVec

	// ErrorsTotal tracks fatal run errors and server errors
	ErrorsTotal prometheus.Counter
)

func initSweepMetrics() {
	RunDuration = NewDurationHistogram(
		"glyphsweep_run_duration_seconds",
		"Duration of sweep runs in seconds.",
	)

	FilesExaminedTotal = NewCounter(
		"glyphsweep_files_examined_total",
		"Total number of files examined for target glyphs.",
	)

	FilesModifiedTotal = NewCounter(
		"glyphsweep_files_modified_total",
		"Total number of files rewritten with glyphs removed.",
	)

	FileErrorsTotal = NewCounterVec(
		"glyphsweep_file_errors_total",
		"Total number of files that could not be processed.",
		[]string{"cause"},
	)

	GlyphsRemovedTotal = NewCounter(
		"glyphsweep_glyphs_removed_total",
		"Total number of glyph occurrences removed.",
	)

	BytesSavedTotal = NewBytesCounter(
		"glyphsweep_bytes_saved_total",
		"Total bytes removed from rewritten files.",
	)

	FileSizeBytes = NewBytesHistogram(
		"glyphsweep_file_size_bytes",
		"Size of examined files in bytes.",
	)

	LastRunTimestamp = NewGauge(
		"glyphsweep_last_run_timestamp",
		"Timestamp of the last completed sweep (Unix epoch seconds).",
	)

	LastRunFiles = NewGaugeVec(
		"glyphsweep_last_run_files",
		"File counts of the last completed sweep.",
		[]string{"outcome"},
	)

	ErrorsTotal = NewCounter(
		"glyphsweep_errors_total",
		"Total number of fatal errors encountered by glyphsweep.",
	)
}

func registerSweepMetrics() {
	prometheus.MustRegister(RunDuration)
	prometheus.MustRegister(FilesExaminedTotal)
	prometheus.MustRegister(FilesModifiedTotal)
	prometheus.MustRegister(FileErrorsTotal)
	prometheus.MustRegister(GlyphsRemovedTotal)
	prometheus.MustRegister(BytesSavedTotal)
	prometheus.MustRegister(FileSizeBytes)
	prometheus.MustRegister(LastRunTimestamp)
	prometheus.MustRegister(LastRunFiles)
	prometheus.MustRegister(ErrorsTotal)
}

// RecordRun updates run-level metrics once a sweep completes
func RecordRun(duration time.Duration, examined, modified, failed int) {
	RunDuration.Observe(duration.Seconds())
	LastRunTimestamp.Set(float64(time.Now().Unix()))
	LastRunFiles.WithLabelValues("examined").Set(float64(examined))
	LastRunFiles.WithLabelValues("modified").Set(float64(modified))
	LastRunFiles.WithLabelValues("failed").Set(float64(failed))
}

// RecordFileError increments the per-cause error counter
func RecordFileError(cause string) {
	FileErrorsTotal.WithLabelValues(cause).Inc()
}
