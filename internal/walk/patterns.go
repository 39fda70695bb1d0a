package walk

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Pattern is a compiled inclusion glob matched against slash-separated paths
// relative to the walk root.
type Pattern struct {
	raw   string
	globs []glob.Glob
}

// CompilePattern compiles a recursive glob. "**" crosses separators and "*"
// does not. A leading "**/" also matches entries directly under the root.
func CompilePattern(raw string) (*Pattern, error) {
	g, err := glob.Compile(raw, '/')
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", raw, err)
	}
	p := &Pattern{raw: raw, globs: []glob.Glob{g}}

	if rest := strings.TrimPrefix(raw, "**/"); rest != raw && rest != "" {
		top, err := glob.Compile(rest, '/')
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", raw, err)
		}
		p.globs = append(p.globs, top)
	}
	return p, nil
}

func CompilePatterns(raw []string) ([]*Pattern, error) {
	out := make([]*Pattern, 0, len(raw))
	for _, r := range raw {
		p, err := CompilePattern(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (p *Pattern) String() string { return p.raw }

func (p *Pattern) Match(rel string) bool {
	for _, g := range p.globs {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
