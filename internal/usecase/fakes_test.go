package usecase

import (
	"context"
	"errors"
	"sync"

	"yessir/internal/domain"
	"yessir/internal/ports"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeAudioSession struct {
	mu         sync.Mutex
	artifact   domain.AudioArtifact
	stopErr    error
	stopCalls  int
	closeCalls int
}

func newFakeAudioSession(data string) *fakeAudioSession {
	return &fakeAudioSession{artifact: domain.AudioArtifact{Data: []byte(data), ContentType: "audio/wav"}}
}

func (f *fakeAudioSession) Stop() (domain.AudioArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	if f.stopErr != nil {
		return domain.AudioArtifact{}, f.stopErr
	}
	return f.artifact, nil
}

func (f *fakeAudioSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return nil
}

func (f *fakeAudioSession) closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

type fakeTranscriber struct {
	mu         sync.Mutex
	transcript string
	err        error
	block      chan struct{}
	received   []domain.AudioArtifact
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio domain.AudioArtifact) (string, error) {
	f.mu.Lock()
	f.received = append(f.received, audio)
	block := f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.transcript, nil
}

type fakeInterpreter struct {
	mu       sync.Mutex
	result   domain.CommandResult
	err      error
	requests []domain.CommandRequest
}

func (f *fakeInterpreter) InterpretCommand(_ context.Context, req domain.CommandRequest) (domain.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.CommandResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeInterpreter) lastRequest() domain.CommandRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return domain.CommandRequest{}
	}
	return f.requests[len(f.requests)-1]
}

type fakeItemStore struct {
	mu        sync.Mutex
	items     map[domain.ItemKind][]domain.Item
	listErr   error
	listCalls map[domain.ItemKind]int
	release   chan struct{}
	entered   chan struct{}
	deleteErr error
	deleteOK  bool
	deleted   []string
}

func newFakeItemStore() *fakeItemStore {
	return &fakeItemStore{
		items:     make(map[domain.ItemKind][]domain.Item),
		listCalls: make(map[domain.ItemKind]int),
		deleteOK:  true,
	}
}

func (f *fakeItemStore) ListItems(ctx context.Context, kind domain.ItemKind) ([]domain.Item, error) {
	f.mu.Lock()
	f.listCalls[kind]++
	release := f.release
	entered := f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.Item(nil), f.items[kind]...), nil
}

func (f *fakeItemStore) DeleteItem(_ context.Context, id string, _ domain.ItemKind) (domain.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return domain.DeleteResult{}, f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	return domain.DeleteResult{Success: f.deleteOK, Message: "deleted"}, nil
}

func (f *fakeItemStore) calls(kind domain.ItemKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls[kind]
}

type fakeKeywordStore struct {
	mu        sync.Mutex
	keywords  map[string]string
	listErr   error
	saveErr   error
	deleteErr error
	saved     map[string]string
}

func newFakeKeywordStore(keywords map[string]string) *fakeKeywordStore {
	return &fakeKeywordStore{keywords: keywords, saved: make(map[string]string)}
}

func (f *fakeKeywordStore) ListKeywords(_ context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make(map[string]string, len(f.keywords))
	for key, value := range f.keywords {
		out[key] = value
	}
	return out, nil
}

func (f *fakeKeywordStore) SaveKeyword(_ context.Context, key string, value string) (domain.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return domain.CommandResult{}, f.saveErr
	}
	f.saved[key] = value
	return domain.CommandResult{Type: "keyword", Message: "Keyword saved"}, nil
}

func (f *fakeKeywordStore) DeleteKeyword(_ context.Context, _ string) (domain.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return domain.DeleteResult{}, f.deleteErr
	}
	return domain.DeleteResult{Success: true}, nil
}

type fakeRules struct {
	transform string
	err       error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.transform != "" {
		return f.transform, nil
	}
	return text, nil
}

type stateRecorder struct {
	mu     sync.Mutex
	phases []domain.Phase
	states []domain.CommandState
}

func recordStates(feed *Feed[domain.CommandState]) *stateRecorder {
	r := &stateRecorder{}
	feed.Subscribe(func(state domain.CommandState) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.phases = append(r.phases, state.Phase)
		r.states = append(r.states, state)
	})
	return r
}

func (r *stateRecorder) snapshot() []domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Phase(nil), r.phases...)
}
