package scrub

import (
	"time"

	"glyphsweep/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics interface for sweep metrics
type Metrics interface {
	FilesExaminedTotal() prometheus.Counter
	FilesModifiedTotal() prometheus.Counter
	GlyphsRemovedTotal() prometheus.Counter
	BytesSavedTotal() prometheus.Counter
	FileSizeBytes() prometheus.Observer
	RecordFileError(cause string)
	RecordRun(duration time.Duration, examined, modified, failed int)
}

// sweepMetrics wraps global metrics to implement Metrics interface
type sweepMetrics struct{}

func (m *sweepMetrics) FilesExaminedTotal() prometheus.Counter { return metrics.FilesExaminedTotal }
func (m *sweepMetrics) FilesModifiedTotal() prometheus.Counter { return metrics.FilesModifiedTotal }
func (m *sweepMetrics) GlyphsRemovedTotal() prometheus.Counter { return metrics.GlyphsRemovedTotal }
func (m *sweepMetrics) BytesSavedTotal() prometheus.Counter    { return metrics.BytesSavedTotal }
func (m *sweepMetrics) FileSizeBytes() prometheus.Observer     { return metrics.FileSizeBytes }
func (m *sweepMetrics) RecordFileError(cause string)           { metrics.RecordFileError(cause) }

func (m *sweepMetrics) RecordRun(duration time.Duration, examined, modified, failed int) {
	metrics.RecordRun(duration, examined, modified, failed)
}

func (c *Cleaner) observe(r Result) {
	c.metrics.FilesExaminedTotal().Inc()
	c.metrics.FileSizeBytes().Observe(float64(r.BytesBefore))
	switch r.Status {
	case Modified:
		c.metrics.FilesModifiedTotal().Inc()
		c.metrics.GlyphsRemovedTotal().Add(float64(r.Removed))
		if !c.dryRun && r.BytesBefore > r.BytesAfter {
			c.metrics.BytesSavedTotal().Add(float64(r.BytesBefore - r.BytesAfter))
		}
	case Failed:
		c.metrics.RecordFileError(r.Cause())
	}
}
