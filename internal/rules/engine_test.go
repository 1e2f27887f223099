package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func writeRules(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.rules")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	return path
}

func TestEngineLiteralAndRegexRules(t *testing.T) {
	t.Parallel()

	path := writeRules(t, `
# literal
to do => todo
# regex, case-insensitive by default
s/\bnavigate me\b/take me/g
`)

	engine, err := Load(path, 30, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to load rules: %v", err)
	}
	if len(engine.Rules()) != 2 || engine.Rules()[1].Line != 5 {
		t.Fatalf("unexpected rules: %+v", engine.Rules())
	}

	output, err := engine.Apply("Add To Do buy milk, then NAVIGATE ME to work")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "Add todo buy milk, then take me to work" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineLiteralMatchesWholeWords(t *testing.T) {
	t.Parallel()

	engine, err := Parse("note => memo", 0, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, err := engine.Apply("note that the notebook is notable")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "memo that the notebook is notable" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineLiteralReplacementIsNotExpanded(t *testing.T) {
	t.Parallel()

	engine, err := Parse("five dollars => $5", 0, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, _ := engine.Apply("pay five dollars")
	if output != "pay $5" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestEngineIteratesUntilStable(t *testing.T) {
	t.Parallel()

	engine, err := Parse("b => c\na => b\n", 5, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, err := engine.Apply("a")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if output != "c" {
		t.Fatalf("expected c, got %q", output)
	}
}

func TestEngineReportsCycles(t *testing.T) {
	t.Parallel()

	engine, err := Parse("ping => pong\npong => ping\n", 3, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if _, err := engine.Apply("ping"); !errors.Is(err, ErrNotConverged) {
		t.Fatalf("expected ErrNotConverged, got %v", err)
	}
}

func TestEngineLiteralRuleStartingWithS(t *testing.T) {
	t.Parallel()

	engine, err := Parse("sea tack => Seatac", 0, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	output, _ := engine.Apply("take me to sea tack airport")
	if output != "take me to Seatac airport" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestRegexRuleWithoutGlobalReplacesFirstMatchOnly(t *testing.T) {
	t.Parallel()

	rule, err := parseSubstitution(`s/(\w+) (\w+)/$2 $1/`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if output := rule.rewrite("milk buy eggs get"); output != "buy milk eggs get" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestRegexRuleEscapedDelimiter(t *testing.T) {
	t.Parallel()

	rule, err := parseSubstitution(`s|a\|b|either|g`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if output := rule.rewrite("a|b"); output != "either" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestParseSubstitutionErrors(t *testing.T) {
	t.Parallel()

	for _, line := range []string{`s/foo/bar/x`, `s/foo/bar`, `s/(/x/`} {
		if _, err := parseSubstitution(line); err == nil {
			t.Fatalf("expected error for %q", line)
		}
	}
}

func TestParseUnsupportedLine(t *testing.T) {
	t.Parallel()

	if _, err := Parse("not-a-rule", 0, nil); err == nil {
		t.Fatalf("expected unsupported rule format error")
	}
}

func TestLoadMissingFileIsIdentity(t *testing.T) {
	t.Parallel()

	engine, err := Load(filepath.Join(t.TempDir(), "missing.rules"), 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	output, err := engine.Apply("unchanged")
	if err != nil || output != "unchanged" {
		t.Fatalf("expected identity, got %q %v", output, err)
	}
}
