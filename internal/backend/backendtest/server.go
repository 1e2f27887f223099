// Package backendtest serves an in-memory command backend speaking the same
// wire format as the real one. It backs client tests and the fake-backend CLI
// command.
package backendtest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	authHeader        = "X-Auth-Token"
	timestampLayout   = "2006-01-02T15:04:05.000000"
	defaultTranscript = "add buy milk to my todo list"
)

// Reply is a scripted interpretation response.
type Reply struct {
	Status int
	Body   map[string]any
}

// Request records a call received by the server.
type Request struct {
	Method      string
	Action      string
	Type        string
	ContentType string
	Token       string
	Body        map[string]any
	AudioBytes  int
}

// Item is a stored todo or note in wire form.
type Item struct {
	ID        string `json:"id"`
	Text      string `json:"text,omitempty"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at"`
	Priority  string `json:"priority,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Server is the in-memory backend.
type Server struct {
	echo   *echo.Echo
	token  string
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	items       map[string][]Item
	keywords    map[string]string
	transcripts []string
	replies     []Reply
	failures    map[string]int
	requests    []Request
}

// New builds a server. An empty token disables the auth check.
func New(token string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		echo:     echo.New(),
		token:    token,
		logger:   logger.Named("fake-backend"),
		now:      time.Now,
		items:    map[string][]Item{"todo": {}, "note": {}},
		keywords: map[string]string{},
		failures: map[string]int{},
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requireToken)

	s.echo.GET("/", s.handleList)
	s.echo.POST("/", s.handlePost)
	s.echo.DELETE("/", s.handleDelete)
	return s
}

// Handler exposes the server for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("fake backend listening", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ScriptTranscripts queues transcripts returned by successive transcribe calls.
func (s *Server) ScriptTranscripts(transcripts ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, transcripts...)
}

// ScriptReplies queues interpretation responses, bypassing the built-in
// interpreter.
func (s *Server) ScriptReplies(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

// FailNext makes the next n calls of action ("transcribe", "interpret",
// "list", "delete", "keyword") answer 500.
func (s *Server) FailNext(action string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[action] += n
}

// SeedItems stores items for kind ("todo" or "note"), newest first.
func (s *Server) SeedItems(kind string, items ...Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[kind] = append(append([]Item(nil), items...), s.items[kind]...)
}

func (s *Server) SeedKeyword(key string, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keywords[key] = value
}

func (s *Server) Items(kind string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.items[kind]...)
}

func (s *Server) Keywords() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.keywords))
	for key, value := range s.keywords {
		out[key] = value
	}
	return out
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.token != "" && c.Request().Header.Get(authHeader) != s.token {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		return next(c)
	}
}

func (s *Server) handleList(c echo.Context) error {
	kind := c.QueryParam("type")
	s.record(c, "list", kind, nil, 0)
	if c.QueryParam("action") != "list" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown action"})
	}
	if s.shouldFail("list") {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list items", "details": "injected failure"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case "keyword":
		keywords := make(map[string]string, len(s.keywords))
		for key, value := range s.keywords {
			keywords[key] = value
		}
		return c.JSON(http.StatusOK, map[string]any{"status": "success", "type": kind, "data": keywords})
	case "todo", "note":
		items := append([]Item(nil), s.items[kind]...)
		return c.JSON(http.StatusOK, map[string]any{"status": "success", "type": kind, "data": items})
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Unknown type"})
	}
}

func (s *Server) handlePost(c echo.Context) error {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, "audio/") {
		audio, err := io.ReadAll(io.LimitReader(c.Request().Body, 25<<20))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing audio data"})
		}
		s.record(c, "transcribe", "", nil, len(audio))
		return s.transcribe(c, audio)
	}

	body := map[string]any{}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
	}

	if encoded, ok := body["audio_base64"].(string); ok && encoded != "" {
		audio, err := base64.StdEncoding.DecodeString(encoded)
		s.record(c, "transcribe", "", body, len(audio))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid base64 audio", "details": err.Error()})
		}
		return s.transcribe(c, audio)
	}

	if kind, _ := body["type"].(string); kind == "keyword" {
		s.record(c, "keyword", kind, body, 0)
		return s.saveKeyword(c, body)
	}

	s.record(c, "interpret", "", body, 0)
	transcript, _ := body["transcript"].(string)
	if strings.TrimSpace(transcript) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing transcript"})
	}
	return s.interpret(c, transcript)
}

func (s *Server) handleDelete(c echo.Context) error {
	var body struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
	}
	s.record(c, "delete", body.Type, map[string]any{"id": body.ID, "type": body.Type}, 0)
	if body.ID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing id"})
	}
	if s.shouldFail("delete") {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete item", "details": "injected failure"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if body.Type == "keyword" {
		key := strings.ToLower(strings.TrimSpace(body.ID))
		if _, ok := s.keywords[key]; !ok {
			return c.JSON(http.StatusOK, map[string]any{"success": false, "message": "Keyword not found"})
		}
		delete(s.keywords, key)
		return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Keyword deleted"})
	}

	items := s.items[body.Type]
	for index, item := range items {
		if item.ID == body.ID {
			s.items[body.Type] = append(items[:index:index], items[index+1:]...)
			return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Item deleted"})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"success": false, "message": "Item not found"})
}

func (s *Server) transcribe(c echo.Context, audio []byte) error {
	if len(audio) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing audio data"})
	}
	if s.shouldFail("transcribe") {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Transcription failed", "details": "injected failure"})
	}

	s.mu.Lock()
	transcript := defaultTranscript
	if len(s.transcripts) > 0 {
		transcript = s.transcripts[0]
		s.transcripts = s.transcripts[1:]
	}
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]string{"transcript": transcript})
}

func (s *Server) saveKeyword(c echo.Context, body map[string]any) error {
	key, _ := body["key"].(string)
	value, _ := body["value"].(string)
	if strings.TrimSpace(key) == "" || strings.TrimSpace(value) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing key or value"})
	}
	if s.shouldFail("keyword") {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save keyword", "details": "injected failure"})
	}

	// Keywords are matched case-insensitively.
	s.mu.Lock()
	s.keywords[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{
		"type":    "keyword",
		"message": "Keyword saved",
		"data":    map[string]string{"key": key, "value": value},
	})
}

var (
	notePattern      = regexp.MustCompile(`(?i)^(?:take a note|note|remember)\b[:,]?\s*(?:that\s+)?(.*)$`)
	transportPattern = regexp.MustCompile(`(?i)^(?:navigate|take me|directions|how do i get|get me)\b.*?\bto\s+(.+)$`)
	meetingPattern   = regexp.MustCompile(`(?i)\b(?:meeting|invite|schedule)\b`)
	todoPrefix       = regexp.MustCompile(`(?i)^(?:add|todo|to do|remind me to)\s+`)
	todoSuffix       = regexp.MustCompile(`(?i)\s+to my (?:todo|to do|to-do) list$`)
)

// interpret classifies the transcript with simple patterns and persists
// todos and notes.
func (s *Server) interpret(c echo.Context, transcript string) error {
	if s.shouldFail("interpret") {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Interpretation failed", "details": "injected failure"})
	}

	s.mu.Lock()
	if len(s.replies) > 0 {
		reply := s.replies[0]
		s.replies = s.replies[1:]
		s.mu.Unlock()
		status := reply.Status
		if status == 0 {
			status = http.StatusOK
		}
		return c.JSON(status, reply.Body)
	}
	s.mu.Unlock()

	transcript = strings.TrimSpace(transcript)
	switch {
	case transportPattern.MatchString(transcript):
		destination := strings.TrimRight(transportPattern.FindStringSubmatch(transcript)[1], ".!?")
		return c.JSON(http.StatusOK, map[string]any{
			"type":        "transport",
			"message":     "Directions to " + destination,
			"parsed_data": map[string]any{"intent": "TRANSPORT", "destination": destination},
			"data":        map[string]any{"destination": destination},
		})
	case meetingPattern.MatchString(transcript):
		return c.JSON(http.StatusOK, map[string]any{
			"type":        "meeting",
			"message":     "Invite sent (MOCKED)",
			"parsed_data": map[string]any{"intent": "MEETING", "summary": transcript},
			"data":        map[string]any{"messageId": "mock-message-id"},
		})
	case notePattern.MatchString(transcript):
		text := strings.TrimSpace(notePattern.FindStringSubmatch(transcript)[1])
		item := s.store("note", Item{Text: text})
		return c.JSON(http.StatusOK, map[string]any{
			"type":        "note",
			"message":     "Note saved",
			"parsed_data": map[string]any{"intent": "NOTE", "text": text},
			"data":        item,
		})
	default:
		title := todoSuffix.ReplaceAllString(todoPrefix.ReplaceAllString(transcript, ""), "")
		item := s.store("todo", Item{Title: title, Text: title, Priority: "medium", Status: "pending"})
		return c.JSON(http.StatusOK, map[string]any{
			"type":        "todo",
			"message":     "Task saved",
			"parsed_data": map[string]any{"intent": "TODO", "title": title, "priority": "medium"},
			"data":        item,
		})
	}
}

func (s *Server) store(kind string, item Item) Item {
	item.ID = uuid.NewString()
	item.CreatedAt = s.now().UTC().Format(timestampLayout)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[kind] = append([]Item{item}, s.items[kind]...)
	return item
}

func (s *Server) shouldFail(action string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures[action] > 0 {
		s.failures[action]--
		return true
	}
	return false
}

func (s *Server) record(c echo.Context, action string, kind string, body map[string]any, audioBytes int) {
	req := Request{
		Method:      c.Request().Method,
		Action:      action,
		Type:        kind,
		ContentType: c.Request().Header.Get(echo.HeaderContentType),
		Token:       c.Request().Header.Get(authHeader),
		Body:        body,
		AudioBytes:  audioBytes,
	}
	s.logger.Debug("request", zap.String("method", req.Method), zap.String("action", action), zap.String("type", kind))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
}

// SortedKeywords is used by the CLI for stable output.
func SortedKeywords(keywords map[string]string) []string {
	keys := make([]string, 0, len(keywords))
	for key := range keywords {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
