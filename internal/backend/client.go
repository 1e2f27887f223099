// Package backend talks to the single-endpoint command backend that
// transcribes audio, interprets commands and stores items and keyword aliases.
package backend

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"yessir/internal/domain"
	"yessir/internal/ports"
)

const (
	authHeader      = "X-Auth-Token"
	maxResponseSize = 4 << 20
	defaultTimeout  = 30 * time.Second
)

var ErrNotConfigured = errors.New("backend URL is not configured")

// Config controls the backend client.
type Config struct {
	URL       string
	AuthToken string
	Timeout   time.Duration
	// RawAudioUpload posts recordings as the request body instead of base64
	// JSON.
	RawAudioUpload bool
	HTTPClient     *http.Client
}

// Client implements ports.Backend over HTTP.
type Client struct {
	endpoint  *url.URL
	token     string
	rawUpload bool
	http      *http.Client
	logger    *zap.Logger
}

var _ ports.Backend = (*Client)(nil)

func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, ErrNotConfigured
	}
	endpoint, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL scheme %q", endpoint.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint:  endpoint,
		token:     strings.TrimSpace(cfg.AuthToken),
		rawUpload: cfg.RawAudioUpload,
		http:      httpClient,
		logger:    logger.Named("backend"),
	}, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("backend returned %d", e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (c *Client) Transcribe(ctx context.Context, audio domain.AudioArtifact) (string, error) {
	if len(audio.Data) == 0 {
		return "", errors.New("audio is empty")
	}
	contentType := audio.ContentType
	if contentType == "" {
		contentType = "audio/wav"
	}

	var resp transcribeResponse
	var err error
	if c.rawUpload {
		err = c.do(ctx, http.MethodPost, nil, bytes.NewReader(audio.Data), contentType, &resp)
	} else {
		err = c.doJSON(ctx, http.MethodPost, nil, transcribeRequest{
			AudioBase64: base64.StdEncoding.EncodeToString(audio.Data),
			ContentType: contentType,
		}, &resp)
	}
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("transcribe: %s", joinDetail(resp.Error, resp.Details))
	}
	return strings.TrimSpace(resp.Transcript), nil
}

func (c *Client) InterpretCommand(ctx context.Context, req domain.CommandRequest) (domain.CommandResult, error) {
	var resp commandResponse
	if err := c.doJSON(ctx, http.MethodPost, nil, interpretRequest{
		Transcript: req.Transcript,
		Timezone:   req.Timezone,
		Email:      req.Email,
	}, &resp); err != nil {
		return domain.CommandResult{}, fmt.Errorf("interpret command: %w", err)
	}
	return resp.result(), nil
}

func (c *Client) ListItems(ctx context.Context, kind domain.ItemKind) ([]domain.Item, error) {
	var resp listResponse
	if err := c.doJSON(ctx, http.MethodGet, listQuery(kind), nil, &resp); err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Plural(), err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("list %s: %s", kind.Plural(), joinDetail(resp.Error, resp.Details))
	}

	items := make([]domain.Item, 0, len(resp.Data))
	for _, raw := range resp.Data {
		items = append(items, raw.item(kind))
	}
	return items, nil
}

func (c *Client) DeleteItem(ctx context.Context, id string, kind domain.ItemKind) (domain.DeleteResult, error) {
	var resp domain.DeleteResult
	if err := c.doJSON(ctx, http.MethodDelete, nil, deleteRequest{ID: id, Type: string(kind)}, &resp); err != nil {
		return domain.DeleteResult{}, fmt.Errorf("delete %s: %w", kind, err)
	}
	return resp, nil
}

func (c *Client) ListKeywords(ctx context.Context) (map[string]string, error) {
	var resp keywordListResponse
	if err := c.doJSON(ctx, http.MethodGet, listQuery(domain.KindKeyword), nil, &resp); err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	if resp.Data == nil {
		return map[string]string{}, nil
	}
	return resp.Data, nil
}

func (c *Client) SaveKeyword(ctx context.Context, key string, value string) (domain.CommandResult, error) {
	var resp commandResponse
	if err := c.doJSON(ctx, http.MethodPost, nil, saveKeywordRequest{
		Type:  string(domain.KindKeyword),
		Key:   key,
		Value: value,
	}, &resp); err != nil {
		return domain.CommandResult{}, fmt.Errorf("save keyword: %w", err)
	}
	return resp.result(), nil
}

func (c *Client) DeleteKeyword(ctx context.Context, key string) (domain.DeleteResult, error) {
	return c.DeleteItem(ctx, key, domain.KindKeyword)
}

func (c *Client) doJSON(ctx context.Context, method string, query url.Values, body any, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.do(ctx, method, query, reader, contentType, out)
}

func (c *Client) do(ctx context.Context, method string, query url.Values, body io.Reader, contentType string, out any) error {
	target := *c.endpoint
	if query != nil {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(authHeader, c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("backend call",
		zap.String("method", method),
		zap.String("action", query.Get("action")),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		var body errorBody
		if json.Unmarshal(payload, &body) == nil {
			statusErr.Message = body.Error
			statusErr.Details = body.Details
		}
		if statusErr.Message == "" {
			statusErr.Message = strings.TrimSpace(http.StatusText(resp.StatusCode))
		}
		return statusErr
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func listQuery(kind domain.ItemKind) url.Values {
	query := url.Values{}
	query.Set("action", "list")
	query.Set("type", string(kind))
	return query
}

func joinDetail(message string, details string) string {
	if strings.TrimSpace(details) == "" {
		return message
	}
	return message + ": " + details
}
