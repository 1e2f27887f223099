package deepgram

import (
	"strings"
	"sync"
)

// transcriptAggregator joins final segments in arrival order. A trailing
// partial is kept only until the next final replaces it.
type transcriptAggregator struct {
	mu      sync.Mutex
	finals  []string
	partial string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) AddFinal(text string) {
	text = strings.TrimSpace(text)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.partial = ""
	if text == "" {
		return
	}
	if n := len(a.finals); n > 0 && a.finals[n-1] == text {
		return
	}
	a.finals = append(a.finals, text)
}

func (a *transcriptAggregator) SetPartial(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.partial = strings.TrimSpace(text)
}

func (a *transcriptAggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	parts := append([]string(nil), a.finals...)
	if a.partial != "" {
		parts = append(parts, a.partial)
	}
	return strings.Join(parts, " ")
}
