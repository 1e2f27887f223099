package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"yessir/internal/domain"
	"yessir/internal/ports"
)

var (
	ErrNotReady        = errors.New("command pipeline is not ready")
	ErrNotListening    = errors.New("no recording in progress")
	ErrClosed          = errors.New("command controller is closed")
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// Config controls command pipeline behavior.
type Config struct {
	Audio ports.AudioConfig
	// Timezone overrides the detected local IANA zone when set.
	Timezone string
	Email    string
}

// CommandController drives the record → transcribe → interpret pipeline and
// publishes each lifecycle state. At most one run is in flight; starting
// while not Ready fails with ErrNotReady and leaves the state unchanged.
type CommandController struct {
	audio       ports.AudioCapture
	transcriber ports.Transcriber
	interpreter ports.CommandInterpreter
	finalizer   transcriptFinalizer
	cache       *LocalCache
	logger      *zap.Logger
	cfg         Config

	// publishMu orders state changes with their publication.
	publishMu sync.Mutex

	mu       sync.Mutex
	state    domain.CommandState
	session  ports.AudioSession
	starting bool
	closed   bool

	states   *Feed[domain.CommandState]
	lifetime context.Context
	shutdown context.CancelFunc
}

func NewCommandController(
	audio ports.AudioCapture,
	transcriber ports.Transcriber,
	interpreter ports.CommandInterpreter,
	rules ports.RulesEngine,
	cache *LocalCache,
	logger *zap.Logger,
	cfg Config,
) *CommandController {
	if logger == nil {
		logger = zap.NewNop()
	}
	lifetime, shutdown := context.WithCancel(context.Background())
	logger = logger.Named("controller")
	return &CommandController{
		audio:       audio,
		transcriber: transcriber,
		interpreter: interpreter,
		finalizer:   newTranscriptFinalizer(rules, logger),
		cache:       cache,
		logger:      logger,
		cfg:         cfg,
		state:       domain.ReadyState(),
		states:      NewFeed(domain.ReadyState()),
		lifetime:    lifetime,
		shutdown:    shutdown,
	}
}

// Init loads the keyword alias table. A failure leaves the table empty and is
// only logged.
func (c *CommandController) Init(ctx context.Context) {
	if err := c.cache.LoadKeywords(ctx); err != nil {
		c.logger.Info("continuing without keyword aliases")
	}
}

// States returns the observable lifecycle state.
func (c *CommandController) States() *Feed[domain.CommandState] {
	return c.states
}

// Cache returns the local item cache.
func (c *CommandController) Cache() *LocalCache {
	return c.cache
}

// State returns the current lifecycle state.
func (c *CommandController) State() domain.CommandState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartRecording begins microphone capture. A capture failure moves the
// pipeline straight to the error state.
func (c *CommandController) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state.Phase != domain.PhaseReady || c.starting:
		phase := c.state.Phase
		c.mu.Unlock()
		return fmt.Errorf("%w: current state is %s", ErrNotReady, phase)
	}
	c.starting = true
	c.mu.Unlock()

	session, err := c.audio.Start(ctx, c.cfg.Audio)
	if err != nil {
		c.logger.Warn("failed to start recording", zap.Error(err))
		c.finishStart(nil, domain.ErrorState(domain.ErrorCategoryCapture, domain.MessageStartRecordingFailed, err.Error()))
		return &PipelineError{Category: domain.ErrorCategoryCapture, Message: domain.MessageStartRecordingFailed, Err: err}
	}

	if !c.finishStart(session, domain.ListeningState()) {
		_ = session.Close()
		return ErrClosed
	}
	c.logger.Info("recording started")
	return nil
}

func (c *CommandController) finishStart(session ports.AudioSession, next domain.CommandState) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	c.starting = false
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.state = next
	c.session = session
	c.mu.Unlock()

	c.states.Publish(next)
	return true
}

// StopRecording finalizes capture and runs transcription and interpretation
// to completion, returning the terminal state. The capture's temporary
// resources are released on every path.
func (c *CommandController) StopRecording(ctx context.Context) (domain.CommandState, error) {
	c.mu.Lock()
	if c.state.Phase != domain.PhaseListening || c.session == nil {
		state := c.state
		c.mu.Unlock()
		return state, ErrNotListening
	}
	session := c.session
	c.session = nil
	c.mu.Unlock()

	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Warn("failed to release recording", zap.Error(err))
		}
	}()

	artifact, err := session.Stop()
	if err == nil && len(artifact.Data) == 0 {
		err = errors.New("no audio captured")
	}
	if err != nil {
		return c.fail(domain.PhaseListening, domain.ErrorCategoryCapture, domain.MessageStopRecordingFailed, err)
	}

	if !c.advance(domain.PhaseListening, domain.TranscribingState()) {
		return c.State(), ErrNotListening
	}

	ctx, done := c.pipelineContext(ctx)
	defer done()

	c.logger.Info("transcribing recording",
		zap.Int("bytes", len(artifact.Data)),
		zap.String("contentType", artifact.ContentType))

	transcript, err := c.transcriber.Transcribe(ctx, artifact)
	if err == nil && strings.TrimSpace(transcript) == "" {
		err = ErrEmptyTranscript
	}
	if err != nil {
		return c.fail(domain.PhaseTranscribing, domain.ErrorCategoryTranscription, domain.MessageTranscriptionFailed, err)
	}

	transcript = c.finalizer.Finalize(transcript)
	if !c.advance(domain.PhaseTranscribing, domain.ProcessingState()) {
		return c.State(), ErrNotReady
	}
	return c.interpret(ctx, transcript)
}

// ProcessCommand interprets a transcript directly, bypassing audio capture.
func (c *CommandController) ProcessCommand(ctx context.Context, transcript string) (domain.CommandState, error) {
	if strings.TrimSpace(transcript) == "" {
		return c.State(), ErrEmptyTranscript
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return c.State(), ErrClosed
	}

	if !c.advance(domain.PhaseReady, domain.ProcessingState()) {
		state := c.State()
		return state, fmt.Errorf("%w: current state is %s", ErrNotReady, state.Phase)
	}

	ctx, done := c.pipelineContext(ctx)
	defer done()
	return c.interpret(ctx, c.finalizer.Finalize(transcript))
}

func (c *CommandController) interpret(ctx context.Context, transcript string) (domain.CommandState, error) {
	timezone := c.cfg.Timezone
	if timezone == "" {
		timezone = LocalTimezone()
	}

	c.logger.Info("interpreting command", zap.String("timezone", timezone), zap.Int("length", len(transcript)))

	result, err := c.interpreter.InterpretCommand(ctx, domain.CommandRequest{
		Transcript: transcript,
		Timezone:   timezone,
		Email:      c.cfg.Email,
	})
	if err != nil {
		return c.fail(domain.PhaseProcessing, domain.ErrorCategoryInterpretationTransport, domain.MessageCommandFailed, err)
	}

	if result.Failed() {
		next := domain.ErrorState(domain.ErrorCategoryInterpretationSemantic, result.Error, result.Details)
		c.logger.Warn("backend rejected command", zap.String("error", result.Error), zap.String("details", result.Details))
		c.advance(domain.PhaseProcessing, next)
		return next, &PipelineError{
			Category: domain.ErrorCategoryInterpretationSemantic,
			Message:  result.Error,
			Err:      semanticCause(result),
		}
	}

	payload := domain.SuccessPayload{
		Message:    result.Message,
		IntentType: result.Type,
		ParsedData: result.ParsedData,
		Data:       result.Data,
	}
	switch result.Type {
	case domain.IntentTodo, domain.IntentNote:
		if item, ok := c.cache.InsertFromResult(result); ok {
			c.logger.Debug("cached new item", zap.String("kind", string(item.Kind)), zap.String("id", item.ID))
		}
	case domain.IntentTransport:
		payload.Navigation = resolveNavigation(result, c.cache.Resolve)
	}

	next := domain.SuccessState(payload)
	c.advance(domain.PhaseProcessing, next)
	c.logger.Info("command completed", zap.String("type", string(result.Type)))
	return next, nil
}

// ResolveAddress maps a spoken destination through the keyword aliases.
func (c *CommandController) ResolveAddress(spoken string) string {
	return c.cache.Resolve(spoken)
}

// Reset returns a terminal state to Ready. It reports false and leaves the
// state untouched while a run is in flight.
func (c *CommandController) Reset() bool {
	return c.advance(domain.PhaseSuccess, domain.ReadyState()) ||
		c.advance(domain.PhaseError, domain.ReadyState())
}

// Close tears the controller down: in-flight work is cancelled, an active
// recording is released and later state changes are no longer published.
func (c *CommandController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	session := c.session
	c.session = nil
	c.mu.Unlock()

	c.states.Close()
	c.shutdown()
	if session != nil {
		if err := session.Close(); err != nil {
			c.logger.Warn("failed to release recording on close", zap.Error(err))
		}
	}
}

func (c *CommandController) advance(from domain.Phase, next domain.CommandState) bool {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	if c.state.Phase != from || (from == domain.PhaseReady && c.starting) {
		c.mu.Unlock()
		return false
	}
	c.state = next
	c.mu.Unlock()

	c.states.Publish(next)
	return true
}

func (c *CommandController) fail(from domain.Phase, category domain.ErrorCategory, message string, cause error) (domain.CommandState, error) {
	next := domain.ErrorState(category, message, cause.Error())
	c.logger.Warn("command pipeline failed",
		zap.String("stage", string(from)),
		zap.String("category", string(category)),
		zap.Error(cause))
	if !c.advance(from, next) {
		return c.State(), cause
	}
	return next, &PipelineError{Category: category, Message: message, Err: cause}
}

func (c *CommandController) pipelineContext(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.lifetime, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func semanticCause(result domain.CommandResult) error {
	if strings.TrimSpace(result.Details) != "" {
		return errors.New(result.Details)
	}
	return errors.New(result.Error)
}
