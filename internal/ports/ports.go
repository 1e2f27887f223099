package ports

import (
	"context"

	"yessir/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
	TempDir     string
}

// AudioSession is a live capture. Stop finalizes the recording; Close
// releases any temporary resources and is safe to call after Stop.
type AudioSession interface {
	Stop() (domain.AudioArtifact, error)
	Close() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// Transcriber turns a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio domain.AudioArtifact) (string, error)
}

// CommandInterpreter classifies a transcript and performs the resulting
// backend side effects (for example persisting a todo).
type CommandInterpreter interface {
	InterpretCommand(ctx context.Context, req domain.CommandRequest) (domain.CommandResult, error)
}

// ItemStore lists and deletes persisted items.
type ItemStore interface {
	ListItems(ctx context.Context, kind domain.ItemKind) ([]domain.Item, error)
	DeleteItem(ctx context.Context, id string, kind domain.ItemKind) (domain.DeleteResult, error)
}

// KeywordStore manages keyword aliases.
type KeywordStore interface {
	ListKeywords(ctx context.Context) (map[string]string, error)
	SaveKeyword(ctx context.Context, key string, value string) (domain.CommandResult, error)
	DeleteKeyword(ctx context.Context, key string) (domain.DeleteResult, error)
}

// Backend is the full remote contract.
type Backend interface {
	Transcriber
	CommandInterpreter
	ItemStore
	KeywordStore
}

// RulesEngine transforms transcripts using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}
