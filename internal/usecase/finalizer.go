package usecase

import (
	"strings"

	"go.uber.org/zap"

	"yessir/internal/ports"
)

// transcriptFinalizer applies rewrite rules to a transcript before it is
// interpreted. Rule failures fall back to the raw transcript.
type transcriptFinalizer struct {
	rules  ports.RulesEngine
	logger *zap.Logger
}

func newTranscriptFinalizer(rules ports.RulesEngine, logger *zap.Logger) transcriptFinalizer {
	return transcriptFinalizer{rules: rules, logger: logger}
}

func (f transcriptFinalizer) Finalize(raw string) string {
	raw = strings.TrimSpace(raw)
	if f.rules == nil {
		return raw
	}

	rewritten, err := f.rules.Apply(raw)
	if err != nil {
		f.logger.Warn("transcript rules failed; using raw transcript", zap.Error(err))
		return raw
	}
	rewritten = strings.TrimSpace(rewritten)
	if rewritten == "" {
		return raw
	}
	if rewritten != raw {
		f.logger.Debug("transcript rewritten", zap.String("raw", raw), zap.String("final", rewritten))
	}
	return rewritten
}
