package safety

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrProtectedPath  = errors.New("protected path")
	ErrOutsideAllowed = errors.New("outside allowed roots")
	ErrTraversal      = errors.New("path traversal detected")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
)

// Validator enforces the safety contract for every in-place rewrite
type Validator struct {
	AllowedRoots   []string
	ProtectedPaths []string

	given []string // roots as passed in, cleaned but possibly relative
}

// NewValidator creates a validator with allowed roots and optional additional protected paths.
// Protected entries that contain an allowed root are dropped: a sweep rooted at
// /usr/src/app may rewrite its own files, while /etc stays off limits.
func NewValidator(allowed []string, extraProtected []string) *Validator {
	roots := normalizeRoots(allowed)
	given := make([]string, 0, len(allowed))
	for _, r := range allowed {
		if strings.TrimSpace(r) != "" {
			given = append(given, filepath.Clean(r))
		}
	}
	return &Validator{
		AllowedRoots:   roots,
		ProtectedPaths: withoutEnclosing(defaultProtected(extraProtected), roots),
		given:          given,
	}
}

// ValidateRewriteTarget is the single-source-of-truth for write authorization
// Returns typed error on safety violation
func (v *Validator) ValidateRewriteTarget(path string) error {
	p, err := NormalizePath(path)
	if err != nil {
		return err
	}

	if DetectTraversal(v.beneathRoot(path)) {
		return ErrTraversal
	}

	if !IsWithinAllowedRoots(p, v.AllowedRoots) {
		return ErrOutsideAllowed
	}

	escaped, err := DetectSymlinkEscape(p, v.AllowedRoots)
	if err != nil {
		return err
	}
	if escaped {
		return ErrSymlinkEscape
	}

	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return err
	}
	if IsProtectedPath(resolved, v.ProtectedPaths) {
		return ErrProtectedPath
	}

	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	for _, p := range strings.Split(filepath.ToSlash(raw), "/") {
		if p == ".." {
			return true
		}
	}
	return false
}

// beneathRoot trims the root prefix the caller supplied, so a root such as
// "../proj" does not read as traversal. Segments below the root are kept.
func (v *Validator) beneathRoot(path string) string {
	for _, r := range v.given {
		if rest, ok := strings.CutPrefix(path, r+string(os.PathSeparator)); ok {
			return rest
		}
	}
	return path
}

// IsWithinAllowedRoots checks if path is within any allowed root
func IsWithinAllowedRoots(path string, allowedRoots []string) bool {
	p := filepath.Clean(path)
	for _, r := range allowedRoots {
		if hasPathPrefix(p, r) {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves symlinks and checks if resolved path escapes allowed roots.
// Roots are resolved too, so a root reached through a symlink still contains its files.
func DetectSymlinkEscape(cleanAbs string, allowedRoots []string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	resolvedClean := filepath.Clean(resolvedAbs)

	roots := make([]string, 0, len(allowedRoots))
	for _, r := range allowedRoots {
		if rr, err := filepath.EvalSymlinks(r); err == nil {
			roots = append(roots, rr)
		} else {
			roots = append(roots, r)
		}
	}
	return !IsWithinAllowedRoots(resolvedClean, roots), nil
}

// IsProtectedPath checks if path falls under a protected system location
func IsProtectedPath(path string, protected []string) bool {
	p := filepath.Clean(path)
	for _, prot := range protected {
		if hasPathPrefix(p, prot) {
			return true
		}
	}
	return false
}

func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	if prefix == string(os.PathSeparator) {
		return true
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		abs, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	return out
}

func withoutEnclosing(protected, roots []string) []string {
	out := make([]string, 0, len(protected))
	for _, prot := range protected {
		if !enclosesRoot(prot, roots) {
			out = append(out, prot)
		}
	}
	return out
}

func enclosesRoot(prot string, roots []string) bool {
	for _, r := range roots {
		if hasPathPrefix(r, prot) {
			return true
		}
		if rr, err := filepath.EvalSymlinks(r); err == nil && hasPathPrefix(rr, prot) {
			return true
		}
	}
	return false
}

// defaultProtected returns system locations that are never rewritten when a
// sweep is rooted above them.
func defaultProtected(extra []string) []string {
	base := []string{
		"/etc",
		"/bin",
		"/sbin",
		"/usr",
		"/boot",
		"/lib",
		"/lib64",
		"/proc",
		"/sys",
		"/dev",
	}
	return append(base, extra...)
}
