package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Phase discriminates the command lifecycle states.
type Phase string

const (
	PhaseReady        Phase = "ready"
	PhaseListening    Phase = "listening"
	PhaseTranscribing Phase = "transcribing"
	PhaseProcessing   Phase = "processing"
	PhaseSuccess      Phase = "success"
	PhaseError        Phase = "error"
)

// IntentType is the backend classification of a voice command.
type IntentType string

const (
	IntentTodo      IntentType = "todo"
	IntentNote      IntentType = "note"
	IntentMeeting   IntentType = "meeting"
	IntentTransport IntentType = "transport"
)

// ItemKind names a cached list. KindKeyword is only used on the wire when
// deleting keyword aliases through the item delete call.
type ItemKind string

const (
	KindTodo    ItemKind = "todo"
	KindNote    ItemKind = "note"
	KindKeyword ItemKind = "keyword"
)

// ItemKinds lists the kinds held by the local cache.
var ItemKinds = []ItemKind{KindTodo, KindNote}

// ParseItemKind accepts "todo"/"note" and their plurals.
func ParseItemKind(raw string) (ItemKind, bool) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s") {
	case string(KindTodo):
		return KindTodo, true
	case string(KindNote):
		return KindNote, true
	default:
		return "", false
	}
}

// Plural is used in user-facing list messages.
func (k ItemKind) Plural() string {
	return string(k) + "s"
}

// Item is a todo or note entry.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Kind      ItemKind  `json:"kind"`
	Priority  string    `json:"priority,omitempty"`
	Status    string    `json:"status,omitempty"`
}

// Label returns the text to display, preferring the title.
func (i Item) Label() string {
	if strings.TrimSpace(i.Title) != "" {
		return i.Title
	}
	return i.Text
}

// AudioArtifact is a finished recording.
type AudioArtifact struct {
	Data        []byte
	ContentType string
}

// CommandRequest is sent to the interpreter.
type CommandRequest struct {
	Transcript string
	Timezone   string
	Email      string
}

// CommandResult mirrors the interpretation response. A non-empty Error
// overrides Type/Message as the success signal.
type CommandResult struct {
	Type       IntentType     `json:"type,omitempty"`
	Message    string         `json:"message"`
	ParsedData map[string]any `json:"parsedData,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	Error      string         `json:"error,omitempty"`
	Details    string         `json:"details,omitempty"`
}

// Failed reports whether the backend flagged a domain-level error.
func (r CommandResult) Failed() bool {
	return strings.TrimSpace(r.Error) != ""
}

// DataString returns a string field from Data, or "".
func (r CommandResult) DataString(key string) string {
	if r.Data == nil {
		return ""
	}
	value, _ := r.Data[key].(string)
	return value
}

// DataID returns an identifier field from Data. Numeric ids are formatted
// without an exponent.
func (r CommandResult) DataID(key string) string {
	if r.Data == nil {
		return ""
	}
	switch value := r.Data[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case int64:
		return strconv.FormatInt(value, 10)
	default:
		return ""
	}
}

// DeleteResult is returned by delete calls.
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NavigationTarget is the resolved destination of a transport intent.
type NavigationTarget struct {
	Destination string `json:"destination"`
	Address     string `json:"address"`
	Deeplink    string `json:"deeplink"`
}
