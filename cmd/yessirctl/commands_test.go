package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"yessir/internal/backend/backendtest"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("YESSIR_ENV_FILE", filepath.Join(home, "missing.env"))
	t.Setenv("YESSIR_BACKEND_URL", "")
	t.Setenv("YESSIR_API_URL", "")
	t.Setenv("YESSIR_RULES_FILE", "")
	t.Setenv("YESSIR_TRANSCRIBER", "")
	t.Setenv("YESSIR_LOG_FILE", "")
	t.Setenv("YESSIR_TIMEZONE", "UTC")
}

func startFake(t *testing.T) *backendtest.Server {
	t.Helper()
	fake := backendtest.New("secret", zaptest.NewLogger(t))
	server := httptest.NewServer(fake.Handler())
	t.Cleanup(server.Close)
	t.Setenv("YESSIR_BACKEND_URL", server.URL)
	return fake
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--token", "secret", "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestSayPrintsResultAndPersists(t *testing.T) {
	isolateEnv(t)
	fake := startFake(t)

	out, err := run(t, "say", "add", "buy", "milk", "to", "my", "todo", "list")
	if err != nil {
		t.Fatalf("say failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Task saved") {
		t.Fatalf("unexpected output: %q", out)
	}
	if items := fake.Items("todo"); len(items) != 1 || items[0].Title != "buy milk" {
		t.Fatalf("unexpected stored todos: %+v", items)
	}
}

func TestSayTransportUsesKeywordAlias(t *testing.T) {
	isolateEnv(t)
	fake := startFake(t)
	fake.SeedKeyword("home", "1 Main St")

	out, err := run(t, "say", "take me to home")
	if err != nil {
		t.Fatalf("say failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "destination=1+Main+St") || !strings.Contains(out, "travelmode=transit") {
		t.Fatalf("expected resolved deeplink, got %q", out)
	}
}

func TestSayReportsSemanticError(t *testing.T) {
	isolateEnv(t)
	fake := startFake(t)
	fake.ScriptReplies(backendtest.Reply{Body: map[string]any{"error": "Could not understand", "details": "no intent"}})

	out, err := run(t, "say", "mumble")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(out, "Could not understand") || !strings.Contains(out, "no intent") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestItemsListsKindsAndDelete(t *testing.T) {
	isolateEnv(t)
	fake := startFake(t)
	fake.SeedItems("todo", backendtest.Item{ID: "t1", Title: "call mom", CreatedAt: "2025-01-02T03:04:05.000000"})
	fake.SeedItems("note", backendtest.Item{ID: "n1", Text: "gate code 1234", CreatedAt: "2025-01-02T03:04:05.000000"})

	out, err := run(t, "items")
	if err != nil {
		t.Fatalf("items failed: %v", err)
	}
	if !strings.Contains(out, "todos (1)") || !strings.Contains(out, "call mom") || !strings.Contains(out, "gate code 1234") {
		t.Fatalf("unexpected output: %q", out)
	}

	if _, err := run(t, "items", "meeting"); err == nil {
		t.Fatalf("expected unknown kind error")
	}

	if out, err := run(t, "delete", "todo", "t1"); err != nil {
		t.Fatalf("delete failed: %v\n%s", err, out)
	}
	if items := fake.Items("todo"); len(items) != 0 {
		t.Fatalf("expected todo deleted, got %+v", items)
	}
	if _, err := run(t, "delete", "todo", "missing"); err == nil {
		t.Fatalf("expected unconfirmed delete to fail")
	}
}

func TestKeywordCommands(t *testing.T) {
	isolateEnv(t)
	fake := startFake(t)

	out, err := run(t, "keywords")
	if err != nil || !strings.Contains(out, "No keywords saved") {
		t.Fatalf("unexpected empty listing: %q, %v", out, err)
	}

	if out, err := run(t, "keywords", "add", "Gym", "42", "Lift", "Ave"); err != nil || !strings.Contains(out, "gym -> 42 Lift Ave") {
		t.Fatalf("unexpected add output: %q, %v", out, err)
	}
	if got := fake.Keywords()["gym"]; got != "42 Lift Ave" {
		t.Fatalf("expected keyword saved, got %q", got)
	}

	out, err = run(t, "resolve", "GYM")
	if err != nil || strings.TrimSpace(out) != "42 Lift Ave" {
		t.Fatalf("unexpected resolution: %q, %v", out, err)
	}

	if _, err := run(t, "keywords", "rm", "gym"); err != nil {
		t.Fatalf("rm failed: %v", err)
	}
	if len(fake.Keywords()) != 0 {
		t.Fatalf("expected keyword removed")
	}
}

func TestGlobalFlagValidation(t *testing.T) {
	isolateEnv(t)
	startFake(t)

	if _, err := run(t, "--transcriber", "whisper", "resolve", "home"); err == nil {
		t.Fatalf("expected unknown transcriber error")
	}

	t.Setenv("YESSIR_BACKEND_URL", "")
	if _, err := run(t, "resolve", "home"); err == nil {
		t.Fatalf("expected missing backend error")
	}
}

func TestFakeBackendHonorsLoggingConfig(t *testing.T) {
	isolateEnv(t)

	_, err := run(t, "--log-level", "loud", "fake-backend", "--addr", "127.0.0.1:0")
	if err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Fatalf("expected --log-level to reach the fake backend logger, got %v", err)
	}

	t.Setenv("YESSIR_LOG_LEVEL", "verbose")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"fake-backend", "--addr", "127.0.0.1:0"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "invalid log level") {
		t.Fatalf("expected YESSIR_LOG_LEVEL to reach the fake backend logger, got %v", err)
	}
}
