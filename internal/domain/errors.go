package domain

// ErrorCategory classifies failures surfaced to the presentation layer.
type ErrorCategory string

const (
	ErrorCategoryCapture                 ErrorCategory = "capture"
	ErrorCategoryTranscription           ErrorCategory = "transcription"
	ErrorCategoryInterpretationTransport ErrorCategory = "interpretation_transport"
	ErrorCategoryInterpretationSemantic  ErrorCategory = "interpretation_semantic"
	ErrorCategoryCacheLoad               ErrorCategory = "cache_load"
	ErrorCategoryMutation                ErrorCategory = "mutation"
)

// Pipeline messages shown in the error state.
const (
	MessageStartRecordingFailed = "Error starting recording"
	MessageStopRecordingFailed  = "Error stopping recording"
	MessageTranscriptionFailed  = "Transcription Failed"
	MessageCommandFailed        = "Command Failed"
)

// ListError is a retained, dismissible error scoped to a list or settings
// screen. It never affects the command pipeline state.
type ListError struct {
	Category ErrorCategory `json:"category"`
	Kind     ItemKind      `json:"kind,omitempty"`
	Message  string        `json:"message"`
}

func (e ListError) Error() string {
	return e.Message
}
