package exitcodes

// Exit codes for glyphsweep
// Per-file failures are reported in the summary and do not change the exit code
const (
	Success       = 0 // Run completed (individual files may have failed)
	InvalidConfig = 2 // Configuration file invalid or flags rejected
	RuntimeError  = 4 // Root unreachable or the run could not start
)
