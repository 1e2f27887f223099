package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"yessir/internal/bootstrap"
	"yessir/internal/config"
	"yessir/internal/domain"
	"yessir/internal/usecase"
)

const (
	eventState = "yessir:state"
	eventCache = "yessir:cache"
	eventError = "yessir:error"
)

// StateView is the lifecycle state as rendered by the frontend.
type StateView struct {
	Phase    domain.Phase           `json:"phase"`
	Label    string                 `json:"label"`
	Busy     bool                   `json:"busy"`
	Terminal bool                   `json:"terminal"`
	Message  string                 `json:"message,omitempty"`
	Success  *domain.SuccessPayload `json:"success,omitempty"`
	Failure  *domain.FailurePayload `json:"failure,omitempty"`
}

func newStateView(state domain.CommandState) StateView {
	return StateView{
		Phase:    state.Phase,
		Label:    phaseLabel(state.Phase),
		Busy:     state.Busy(),
		Terminal: state.Terminal(),
		Message:  state.Message(),
		Success:  state.Success,
		Failure:  state.Failure,
	}
}

// App is the Wails application root.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.CommandController
	cache      *usecase.LocalCache
	cfg        config.Config
	logger     *zap.Logger
	bootErr    error

	emit func(ctx context.Context, name string, data ...interface{})

	mu          sync.Mutex
	unsubscribe []func()
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(nil)
	if err != nil {
		a.bootErr = err
		a.emitError("Startup failed", err.Error())
		return
	}
	a.attach(services)

	go a.controller.Init(ctx)
}

func (a *App) shutdown(_ context.Context) {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	a.services.Close()
}

func (a *App) attach(services bootstrap.Services) {
	a.services = services
	a.controller = services.Controller
	a.cache = services.Cache
	a.cfg = services.Config
	a.logger = services.Logger.Named("app")

	a.mu.Lock()
	defer a.mu.Unlock()
	a.unsubscribe = append(a.unsubscribe,
		a.controller.States().Subscribe(func(state domain.CommandState) {
			a.emitEvent(eventState, newStateView(state))
		}),
		a.cache.Changes().Subscribe(func(snapshot usecase.CacheSnapshot) {
			a.emitEvent(eventCache, snapshot)
		}),
	)
}

// StartRecording begins capturing a command.
func (a *App) StartRecording() (StateView, error) {
	if err := a.requireReady(); err != nil {
		return StateView{}, err
	}
	if err := a.controller.StartRecording(a.ctx); err != nil {
		a.logger.Warn("start recording rejected", zap.Error(err))
		return a.GetState(), err
	}
	return a.GetState(), nil
}

// StopRecording ends capture and runs the command to a terminal state.
func (a *App) StopRecording() (StateView, error) {
	if err := a.requireReady(); err != nil {
		return StateView{}, err
	}
	state, err := a.controller.StopRecording(a.ctx)
	return newStateView(state), err
}

// SubmitTranscript runs a typed command through interpretation.
func (a *App) SubmitTranscript(text string) (StateView, error) {
	if err := a.requireReady(); err != nil {
		return StateView{}, err
	}
	state, err := a.controller.ProcessCommand(a.ctx, text)
	return newStateView(state), err
}

// Reset dismisses a success or error result.
func (a *App) Reset() StateView {
	if a.controller != nil {
		a.controller.Reset()
	}
	return a.GetState()
}

// GetState returns the current lifecycle state.
func (a *App) GetState() StateView {
	if a.controller == nil {
		if a.bootErr != nil {
			return newStateView(domain.ErrorState(domain.ErrorCategoryCapture, "Startup failed", a.bootErr.Error()))
		}
		return newStateView(domain.ReadyState())
	}
	return newStateView(a.controller.State())
}

// LoadItems returns kind's list, fetching it the first time it is viewed.
func (a *App) LoadItems(kind string) ([]domain.Item, error) {
	parsed, err := a.itemKind(kind)
	if err != nil {
		return nil, err
	}
	return a.cache.LoadIfNeeded(a.ctx, parsed)
}

// ReloadItems refetches kind's list.
func (a *App) ReloadItems(kind string) ([]domain.Item, error) {
	parsed, err := a.itemKind(kind)
	if err != nil {
		return nil, err
	}
	return a.cache.Reload(a.ctx, parsed)
}

func (a *App) DeleteItem(kind string, id string) error {
	parsed, err := a.itemKind(kind)
	if err != nil {
		return err
	}
	return a.cache.DeleteItem(a.ctx, id, parsed)
}

func (a *App) GetCache() usecase.CacheSnapshot {
	if a.cache == nil {
		return usecase.CacheSnapshot{}
	}
	return a.cache.Snapshot()
}

func (a *App) DismissListError() {
	if a.cache != nil {
		a.cache.DismissError()
	}
}

func (a *App) GetKeywords() map[string]string {
	if a.cache == nil {
		return map[string]string{}
	}
	return a.cache.Keywords()
}

func (a *App) AddKeyword(keyword string, address string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.cache.AddKeyword(a.ctx, keyword, address)
}

func (a *App) DeleteKeyword(keyword string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.cache.DeleteKeyword(a.ctx, keyword)
}

// ResolveAddress maps a spoken place name through the keyword aliases.
func (a *App) ResolveAddress(spoken string) string {
	if a.controller == nil {
		return spoken
	}
	return a.controller.ResolveAddress(spoken)
}

// OpenNavigation opens the deeplink of the current transport result.
func (a *App) OpenNavigation() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	state := a.controller.State()
	if state.Success == nil || state.Success.Navigation == nil {
		return fmt.Errorf("no navigation target available")
	}
	runtime.BrowserOpenURL(a.ctx, state.Success.Navigation.Deeplink)
	return nil
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backend":          a.cfg.Backend.URL,
		"transcriber":      a.cfg.Transcriber.Provider,
		"timezone":         firstNonEmpty(a.cfg.Command.Timezone, usecase.LocalTimezone()),
		"rulesFile":        a.cfg.Rules.Path,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
}

func (a *App) itemKind(raw string) (domain.ItemKind, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	kind, ok := domain.ParseItemKind(raw)
	if !ok {
		return "", fmt.Errorf("%w: %q", usecase.ErrUnknownKind, raw)
	}
	return kind, nil
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil || a.cache == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) emitEvent(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

func (a *App) emitError(message string, detail string) {
	a.emitEvent(eventError, map[string]string{
		"message": message,
		"detail":  detail,
	})
}

func phaseLabel(phase domain.Phase) string {
	switch phase {
	case domain.PhaseReady:
		return "Tap to speak"
	case domain.PhaseListening:
		return "Listening..."
	case domain.PhaseTranscribing:
		return "Transcribing..."
	case domain.PhaseProcessing:
		return "Processing..."
	case domain.PhaseSuccess:
		return "Done"
	case domain.PhaseError:
		return "Something went wrong"
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
