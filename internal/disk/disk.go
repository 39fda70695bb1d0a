package disk

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// ErrStaleMount is returned when a root does not answer a stat in time
// or fails with a network-filesystem error.
var ErrStaleMount = errors.New("stale or unresponsive mount")

// ProbeRoot stats path with a timeout so a hung network mount cannot stall a sweep.
// Ordinary stat errors (missing path, permissions) are returned unchanged.
func ProbeRoot(path string, timeout time.Duration) error {
	if timeout <= 0 {
		_, err := os.Stat(path)
		return err
	}

	done := make(chan error, 1)
	go func() {
		_, err := os.Stat(path)
		done <- err
	}()

	select {
	case err := <-done:
		if isStaleErr(err) {
			return fmt.Errorf("%s: %w: %v", path, ErrStaleMount, err)
		}
		return err
	case <-time.After(timeout):
		return fmt.Errorf("%s: %w: no response after %s", path, ErrStaleMount, timeout)
	}
}

// IsNFSStale reports whether path looks like a stale NFS mount
func IsNFSStale(path string, timeout time.Duration) bool {
	return errors.Is(ProbeRoot(path, timeout), ErrStaleMount)
}

func isStaleErr(err error) bool {
	if err == nil {
		return false
	}
	// Common NFS errors: EIO, ESTALE, ENXIO
	return os.IsTimeout(err) ||
		errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.ESTALE) ||
		errors.Is(err, syscall.ENXIO)
}
