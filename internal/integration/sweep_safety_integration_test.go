package integration

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"

	"glyphsweep/internal/config"
	"glyphsweep/internal/database"
	"glyphsweep/internal/safety"
	"glyphsweep/internal/scrub"
	"glyphsweep/internal/walk"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

// TestSweepSafetyIntegration verifies the complete rewrite contract with a real filesystem
func TestSweepSafetyIntegration(t *testing.T) {
	// 1. Create temporary filesystem structure
	tmpRoot := t.TempDir()
	repo := filepath.Join(tmpRoot, "repo")
	outside := filepath.Join(tmpRoot, "outside")

	writeFile(t, filepath.Join(repo, "README.md"), "# Project 🚀\n\nStatus: ✅ done\n")
	writeFile(t, filepath.Join(repo, "docs", "guide.md"), "Plain guide.\n")
	writeFile(t, filepath.Join(repo, "scripts", "setup.sh"), "#!/bin/sh\necho \"⚙️ configuring\"\n")
	writeFile(t, filepath.Join(repo, "node_modules", "pkg", "README.md"), "🎉 vendored\n")
	writeFile(t, filepath.Join(repo, ".git", "hooks", "pre-commit.sh"), "echo 🔧\n")
	writeFile(t, filepath.Join(repo, "main.go"), "// 💡 not eligible\n")

	// File outside the root, reachable through a symlink inside it (must never be touched)
	protectedFile := filepath.Join(outside, "keep.md")
	writeFile(t, protectedFile, "MUST KEEP 🚀\n")
	if err := os.Symlink(protectedFile, filepath.Join(repo, "linked.md")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	cfg := config.Default()
	cfg.Root = repo

	matcher, err := cfg.NewMatcher()
	if err != nil {
		t.Fatalf("NewMatcher failed: %v", err)
	}
	walker, err := walk.New(cfg.IncludePatterns, cfg.ExcludeDirs, log.Default())
	if err != nil {
		t.Fatalf("walk.New failed: %v", err)
	}

	// 2a. DRY-RUN: Assert no filesystem changes
	t.Run("DryRun_NoFilesystemChanges", func(t *testing.T) {
		before := readFile(t, filepath.Join(repo, "README.md"))

		var out bytes.Buffer
		c := scrub.NewCleaner(log.Default(), matcher, true, nil)
		c.SetReporter(scrub.ConsoleReporter{Out: &out})

		s, err := c.Run(context.Background(), walker, repo)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if s.Modified != 2 {
			t.Errorf("dry run modified = %d, want 2", s.Modified)
		}
		if readFile(t, filepath.Join(repo, "README.md")) != before {
			t.Error("DRY-RUN VIOLATION: README.md changed")
		}
		if readFile(t, protectedFile) != "MUST KEEP 🚀\n" {
			t.Error("DRY-RUN VIOLATION: protected file changed")
		}
	})

	// 2b. REAL RUN: eligible files cleaned, symlink escape refused
	t.Run("RealRun_SafetyEnforced", func(t *testing.T) {
		dbPath := filepath.Join(tmpRoot, "history.db")
		db, err := database.NewHistoryDB(dbPath)
		if err != nil {
			t.Fatalf("NewHistoryDB failed: %v", err)
		}
		defer db.Close()

		c := scrub.NewCleaner(log.Default(), matcher, false, db)
		s, err := c.Run(context.Background(), walker, repo)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		// README.md, docs/guide.md, linked.md, scripts/setup.sh
		if s.Examined != 4 || s.Modified != 2 || s.Failed != 1 {
			t.Errorf("examined=%d modified=%d failed=%d, want 4/2/1", s.Examined, s.Modified, s.Failed)
		}

		if got := readFile(t, filepath.Join(repo, "README.md")); got != "# Project \n\nStatus:  done\n" {
			t.Errorf("README.md = %q", got)
		}
		if got := readFile(t, filepath.Join(repo, "scripts", "setup.sh")); got != "#!/bin/sh\necho \" configuring\"\n" {
			t.Errorf("setup.sh = %q", got)
		}
		if got := readFile(t, filepath.Join(repo, "node_modules", "pkg", "README.md")); got != "🎉 vendored\n" {
			t.Error("excluded directory was modified")
		}
		if got := readFile(t, filepath.Join(repo, ".git", "hooks", "pre-commit.sh")); got != "echo 🔧\n" {
			t.Error(".git was modified")
		}
		if got := readFile(t, filepath.Join(repo, "main.go")); got != "// 💡 not eligible\n" {
			t.Error("non-matching extension was modified")
		}
		if got := readFile(t, protectedFile); got != "MUST KEEP 🚀\n" {
			t.Error("SAFETY VIOLATION: file outside root rewritten through symlink")
		}

		var escape *scrub.Result
		for i := range s.Results {
			if s.Results[i].Status == scrub.Failed {
				escape = &s.Results[i]
			}
		}
		if escape == nil || !errors.Is(escape.Err, safety.ErrSymlinkEscape) {
			t.Errorf("expected symlink escape failure, got %+v", escape)
		}

		errs, err := db.GetRewritesByAction(database.ActionError, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(errs) != 1 {
			t.Errorf("expected 1 ERROR record, got %d", len(errs))
		}
	})

	// 2c. IDEMPOTENT: second run changes nothing
	t.Run("SecondRun_Idempotent", func(t *testing.T) {
		c := scrub.NewCleaner(log.Default(), matcher, false, nil)
		s, err := c.Run(context.Background(), walker, repo)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if s.Modified != 0 {
			t.Errorf("second run modified %d files", s.Modified)
		}
	})
}

// TestSweepRootSymlink verifies a root reached through a symlink still works
func TestSweepRootSymlink(t *testing.T) {
	tmp := t.TempDir()
	real := filepath.Join(tmp, "real")
	writeFile(t, filepath.Join(real, "a.md"), "hello 👋 🎯\n")
	link := filepath.Join(tmp, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	walker, err := walk.New(config.DefaultIncludePatterns(), config.DefaultExcludeDirs(), log.Default())
	if err != nil {
		t.Fatal(err)
	}
	c := scrub.NewCleaner(log.Default(), nil, false, nil)
	s, err := c.Run(context.Background(), walker, link)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if s.Modified != 1 {
		t.Errorf("modified = %d, want 1 (%+v)", s.Modified, s.Results)
	}
	// 👋 is not in the built-in set
	if got := readFile(t, filepath.Join(real, "a.md")); got != "hello 👋 \n" {
		t.Errorf("a.md = %q", got)
	}
}
