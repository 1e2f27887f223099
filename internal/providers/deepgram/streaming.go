package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"yessir/internal/domain"
	"yessir/internal/ports"
)

const defaultChunkSize = 8 * 1024

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	// SampleRate and Channels describe raw PCM uploads. Containerized audio
	// such as WAV carries its own header and omits them.
	SampleRate int
	Channels   int
	ChunkSize  int
}

// Provider implements ports.Transcriber over the Deepgram listen websocket.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger
}

var _ ports.Transcriber = (*Provider)(nil)

func NewProvider(cfg Config, logger *zap.Logger) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.deepgram.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, dialer: websocket.DefaultDialer, logger: logger.Named("deepgram")}
}

// Transcribe streams a finished recording and returns the joined final
// transcript segments.
func (p *Provider) Transcribe(ctx context.Context, audio domain.AudioArtifact) (string, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return "", errors.New("DEEPGRAM_API_KEY is not configured")
	}
	if len(audio.Data) == 0 {
		return "", errors.New("audio is empty")
	}

	wsURL, err := buildListenURL(p.cfg, audio.ContentType)
	if err != nil {
		return "", err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, _, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return "", fmt.Errorf("failed to connect to Deepgram websocket: %w", err)
	}

	stream := newListenStream(conn)
	go stream.readLoop()

	stop := context.AfterFunc(ctx, func() { _ = stream.Close() })
	defer stop()

	p.logger.Debug("streaming recording", zap.Int("bytes", len(audio.Data)), zap.String("contentType", audio.ContentType))
	sendErr := stream.send(audio.Data, p.cfg.ChunkSize)
	waitErr := stream.Wait()
	_ = stream.Close()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if sendErr != nil {
		return "", sendErr
	}
	if waitErr != nil {
		return "", waitErr
	}
	return stream.transcript.Text(), nil
}

type listenStream struct {
	conn       *websocket.Conn
	transcript *transcriptAggregator
	done       chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func newListenStream(conn *websocket.Conn) *listenStream {
	return &listenStream{
		conn:       conn,
		transcript: newTranscriptAggregator(),
		done:       make(chan struct{}),
	}
}

func (s *listenStream) send(data []byte, chunkSize int) error {
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := s.conn.WriteMessage(websocket.BinaryMessage, data[offset:end]); err != nil {
			return fmt.Errorf("failed to send audio: %w", err)
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

func (s *listenStream) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *listenStream) Close() error {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
	})
	return nil
}

func (s *listenStream) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *listenStream) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *listenStream) readLoop() {
	defer close(s.done)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = "deepgram returned an unknown error"
			}
			s.setErr(errors.New(message))
			return
		}

		transcript := extractTranscript(response)
		if transcript == "" {
			continue
		}
		if response.IsFinal || response.SpeechFinal {
			s.transcript.AddFinal(transcript)
		} else {
			s.transcript.SetPartial(transcript)
		}
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func extractTranscript(response deepgramResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func buildListenURL(providerCfg Config, contentType string) (string, error) {
	base := providerCfg.APIBaseURL
	if base == "" {
		base = "https://api.deepgram.com/v1"
	}
	base = strings.TrimSpace(base)

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("smart_format", fmt.Sprintf("%t", providerCfg.SmartFormat))
	if isRawPCM(contentType) {
		sampleRate := providerCfg.SampleRate
		if sampleRate <= 0 {
			sampleRate = 16000
		}
		channels := providerCfg.Channels
		if channels <= 0 {
			channels = 1
		}
		query.Set("encoding", "linear16")
		query.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
		query.Set("channels", fmt.Sprintf("%d", channels))
	}
	if providerCfg.Language != "" {
		query.Set("language", providerCfg.Language)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}

func isRawPCM(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	switch mediaType {
	case "audio/l16", "audio/pcm", "audio/raw", "application/octet-stream":
		return true
	default:
		return false
	}
}
