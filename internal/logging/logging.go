package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"glyphsweep/internal/config"
)

// New creates a logger that writes to stderr and, when cfg names a log file,
// to that file as well. The file is rotated once it is older than
// cfg.Logging.RotationDays.
func New(cfg *config.Config) *log.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter is New with a custom console writer.
func NewWithWriter(console io.Writer, cfg *config.Config) *log.Logger {
	flags := log.LstdFlags | log.Lmicroseconds
	if cfg == nil || cfg.Logging.File == "" {
		return log.New(console, "", flags)
	}

	filePath := cfg.Logging.File
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		log.Printf("failed to ensure log directory for %s: %v", filePath, err)
	}

	rotateDays := 30
	if cfg.Logging.RotationDays > 0 {
		rotateDays = cfg.Logging.RotationDays
	}
	rotateLogsIfNeeded(filePath, rotateDays, time.Now())

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", filePath, err)
		return log.New(console, "", flags)
	}

	return log.New(io.MultiWriter(console, f), "", flags)
}

// Leveled wraps a standard logger with [LEVEL] prefixed key/value lines.
type Leveled struct {
	*log.Logger
}

func NewLeveled(l *log.Logger) *Leveled {
	if l == nil {
		l = log.Default()
	}
	return &Leveled{Logger: l}
}

func (l *Leveled) Info(msg string, args ...interface{})  { l.logWithLevel("INFO", msg, args...) }
func (l *Leveled) Warn(msg string, args ...interface{})  { l.logWithLevel("WARN", msg, args...) }
func (l *Leveled) Error(msg string, args ...interface{}) { l.logWithLevel("ERROR", msg, args...) }
func (l *Leveled) Debug(msg string, args ...interface{}) { l.logWithLevel("DEBUG", msg, args...) }

func (l *Leveled) logWithLevel(level, msg string, args ...interface{}) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", level, msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		fmt.Fprintf(&sb, " %v", args[len(args)-1])
	}
	l.Logger.Println(sb.String())
}

// rotateLogsIfNeeded renames the log aside once it is older than rotationDays
// and prunes rotated copies past the same age.
func rotateLogsIfNeeded(logPath string, rotationDays int, now time.Time) {
	info, err := os.Stat(logPath)
	if err != nil {
		return
	}

	cutoffTime := now.AddDate(0, 0, -rotationDays)
	if !info.ModTime().Before(cutoffTime) {
		return
	}

	rotatedPath := logPath + "." + info.ModTime().Format("20060102-150405")
	if err := os.Rename(logPath, rotatedPath); err != nil {
		log.Printf("failed to rotate log file: %v", err)
		return
	}

	cleanupOldLogs(logPath, cutoffTime)
}

func cleanupOldLogs(logPath string, cutoffTime time.Time) {
	logDir := filepath.Dir(logPath)
	prefix := filepath.Base(logPath) + "."

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoffTime) {
			fullPath := filepath.Join(logDir, entry.Name())
			if err := os.Remove(fullPath); err != nil {
				log.Printf("failed to remove old log file %s: %v", fullPath, err)
			}
		}
	}
}
