package usecase

import "yessir/internal/domain"

// PipelineError reports a failed pipeline run. The same message and category
// are published in the error state.
type PipelineError struct {
	Category domain.ErrorCategory
	Message  string
	Err      error
}

func (e *PipelineError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
