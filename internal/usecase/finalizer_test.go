package usecase

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestTranscriptFinalizerRulesFailureFallsBackToRaw(t *testing.T) {
	t.Parallel()

	f := newTranscriptFinalizer(&fakeRules{err: errors.New("rules")}, zaptest.NewLogger(t))
	if got := f.Finalize("  add milk  "); got != "add milk" {
		t.Fatalf("expected raw transcript, got %q", got)
	}
}

func TestTranscriptFinalizerEmptyRewriteFallsBackToRaw(t *testing.T) {
	t.Parallel()

	f := newTranscriptFinalizer(&fakeRules{transform: "   "}, zaptest.NewLogger(t))
	if got := f.Finalize("note buy stamps"); got != "note buy stamps" {
		t.Fatalf("expected raw transcript, got %q", got)
	}
}

func TestTranscriptFinalizerAppliesRewrite(t *testing.T) {
	t.Parallel()

	f := newTranscriptFinalizer(&fakeRules{transform: "add todo buy milk"}, zaptest.NewLogger(t))
	if got := f.Finalize("add to do buy milk"); got != "add todo buy milk" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}

func TestTranscriptFinalizerWithoutRules(t *testing.T) {
	t.Parallel()

	f := newTranscriptFinalizer(nil, zaptest.NewLogger(t))
	if got := f.Finalize("\thello\n"); got != "hello" {
		t.Fatalf("unexpected transcript: %q", got)
	}
}
