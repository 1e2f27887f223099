package domain

// SuccessPayload is carried by the success state.
type SuccessPayload struct {
	Message    string            `json:"message"`
	IntentType IntentType        `json:"intentType,omitempty"`
	ParsedData map[string]any    `json:"parsedData,omitempty"`
	Data       map[string]any    `json:"data,omitempty"`
	Navigation *NavigationTarget `json:"navigation,omitempty"`
}

// FailurePayload is carried by the error state.
type FailurePayload struct {
	Message  string        `json:"message"`
	Details  string        `json:"details,omitempty"`
	Category ErrorCategory `json:"category"`
}

// CommandState is the published lifecycle state. Exactly one payload is set
// for the terminal phases and none for the others.
type CommandState struct {
	Phase   Phase           `json:"phase"`
	Success *SuccessPayload `json:"success,omitempty"`
	Failure *FailurePayload `json:"failure,omitempty"`
}

func ReadyState() CommandState        { return CommandState{Phase: PhaseReady} }
func ListeningState() CommandState    { return CommandState{Phase: PhaseListening} }
func TranscribingState() CommandState { return CommandState{Phase: PhaseTranscribing} }
func ProcessingState() CommandState   { return CommandState{Phase: PhaseProcessing} }

func SuccessState(payload SuccessPayload) CommandState {
	return CommandState{Phase: PhaseSuccess, Success: &payload}
}

func ErrorState(category ErrorCategory, message string, details string) CommandState {
	return CommandState{Phase: PhaseError, Failure: &FailurePayload{
		Message:  message,
		Details:  details,
		Category: category,
	}}
}

// Terminal reports whether the state waits for an explicit reset.
func (s CommandState) Terminal() bool {
	return s.Phase == PhaseSuccess || s.Phase == PhaseError
}

// Busy reports whether a pipeline run is in flight.
func (s CommandState) Busy() bool {
	switch s.Phase {
	case PhaseListening, PhaseTranscribing, PhaseProcessing:
		return true
	default:
		return false
	}
}

// Message returns the user-facing message of a terminal state.
func (s CommandState) Message() string {
	switch {
	case s.Success != nil:
		return s.Success.Message
	case s.Failure != nil:
		return s.Failure.Message
	default:
		return ""
	}
}
