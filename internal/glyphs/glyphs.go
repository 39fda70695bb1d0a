// Package glyphs defines the sets of characters glyphsweep strips from text.
package glyphs

import (
	"errors"
	"regexp"
	"strings"
)

var ErrEmptyTarget = errors.New("target glyph cannot be empty")

// Matcher detects and removes target glyphs from text.
type Matcher interface {
	Name() string
	Contains(text string) bool
	Strip(text string) (string, int)
}

// DefaultTargets returns the emoticons removed when no targets are configured.
// Entries ending in U+FE0F are matched together with their variation selector.
func DefaultTargets() []string {
	return []string{
		"📋", "✅", "🎯", "🚀", "📁", "🎥", "\u2699\ufe0f", "🔧",
		"📊", "💡", "🚨", "📖", "🎉", "🎓", "📚", "📝",
		"💻", "📱", "\U0001F5BC\ufe0f", "📉", "💾", "🎨", "🔄", "📦",
		"⚡", "🔵", "🔴", "✨", "⚪", "🔍", "\u26a0\ufe0f", "❗",
		"📞", "🆘", "❌", "🏆", "🎭", "🌟", "💰", "\U0001F6E0\ufe0f",
		"🔐", "🌐", "📈", "🧪", "🧰", "\u23f1\ufe0f", "🎬",
	}
}

// Set is an immutable collection of target glyphs. Matching is leftmost-first:
// at each position the earliest target in set order wins.
type Set struct {
	targets []string
	re      *regexp.Regexp
}

// NewSet builds a Set from targets, dropping duplicates while keeping order.
func NewSet(targets []string) (*Set, error) {
	seen := make(map[string]bool, len(targets))
	uniq := make([]string, 0, len(targets))
	quoted := make([]string, 0, len(targets))
	for _, t := range targets {
		if t == "" {
			return nil, ErrEmptyTarget
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		uniq = append(uniq, t)
		quoted = append(quoted, regexp.QuoteMeta(t))
	}

	s := &Set{targets: uniq}
	if len(quoted) > 0 {
		s.re = regexp.MustCompile(strings.Join(quoted, "|"))
	}
	return s, nil
}

// Default returns a Set of DefaultTargets.
func Default() *Set {
	s, _ := NewSet(DefaultTargets())
	return s
}

func (s *Set) Name() string { return "fixed" }

// Targets returns a copy of the glyphs in set order.
func (s *Set) Targets() []string {
	out := make([]string, len(s.targets))
	copy(out, s.targets)
	return out
}

func (s *Set) Len() int { return len(s.targets) }

func (s *Set) Contains(text string) bool {
	if s.re == nil {
		return false
	}
	return s.re.MatchString(text)
}

// Strip deletes every occurrence of every target and reports how many were removed.
func (s *Set) Strip(text string) (string, int) {
	if s.re == nil {
		return text, 0
	}
	removed := 0
	out := s.re.ReplaceAllStringFunc(text, func(string) string {
		removed++
		return ""
	})
	return out, removed
}
