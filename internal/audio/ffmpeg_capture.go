package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"yessir/internal/domain"
	"yessir/internal/ports"
)

const wavContentType = "audio/wav"

var ErrNoAudio = errors.New("no audio captured")

// FFMPEGCapture records the microphone to a temporary WAV file using ffmpeg.
type FFMPEGCapture struct {
	command string
	logger  *zap.Logger
}

func NewFFMPEGCapture(command string, logger *zap.Logger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFMPEGCapture{command: command, logger: logger.Named("audio")}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	output, err := os.CreateTemp(cfg.TempDir, "yessir-*.wav")
	if err != nil {
		return nil, fmt.Errorf("failed to create recording file: %w", err)
	}
	path := output.Name()
	_ = output.Close()

	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "wav",
		path,
	}

	// The recording outlives ctx; ctx only bounds startup.
	cmd := exec.Command(c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		_ = os.Remove(path)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stringsTrimSpaceSafe(stderr.String()))
		}
		return nil, errors.New("ffmpeg exited before capture started")
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-waitErr
		_ = os.Remove(path)
		return nil, ctx.Err()
	case <-time.After(250 * time.Millisecond):
	}

	c.logger.Debug("recording to temporary file", zap.String("path", path))
	return &ffmpegSession{
		path:    path,
		stderr:  &stderr,
		process: cmd.Process,
		waitErr: waitErr,
		logger:  c.logger,
	}, nil
}

type ffmpegSession struct {
	path   string
	stderr *bytes.Buffer
	logger *zap.Logger

	process *os.Process
	waitErr <-chan error

	mu       sync.Mutex
	stopped  bool
	stopErr  error
	artifact domain.AudioArtifact
	removed  bool
}

// Stop ends the recording and returns the captured WAV bytes. Repeated calls
// return the first result.
func (s *ffmpegSession) Stop() (domain.AudioArtifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return s.artifact, s.stopErr
	}
	s.stopped = true

	if s.process != nil {
		_ = s.process.Signal(os.Interrupt)
	}
	if err := s.wait(1200 * time.Millisecond); err != nil {
		s.stopErr = err
		return s.artifact, s.stopErr
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.stopErr = fmt.Errorf("failed to read recording: %w", err)
		return s.artifact, s.stopErr
	}
	if len(data) == 0 {
		s.stopErr = ErrNoAudio
		return s.artifact, s.stopErr
	}

	s.artifact = domain.AudioArtifact{Data: data, ContentType: wavContentType}
	s.logger.Debug("recording stopped", zap.Int("bytes", len(data)))
	return s.artifact, nil
}

// Close kills a still-running recorder and removes the temporary file.
func (s *ffmpegSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removed {
		return nil
	}
	s.removed = true

	if !s.stopped {
		s.stopped = true
		s.stopErr = errors.New("recording discarded")
		if s.process != nil {
			_ = s.process.Kill()
		}
		_ = s.wait(time.Second)
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove recording: %w", err)
	}
	return nil
}

func (s *ffmpegSession) wait(grace time.Duration) error {
	var err error
	select {
	case werr, ok := <-s.waitErr:
		if ok {
			err = normalizeStopErr(werr)
		}
	case <-time.After(grace):
		if s.process != nil {
			_ = s.process.Kill()
		}
		if werr, ok := <-s.waitErr; ok {
			err = normalizeStopErr(werr)
		}
	}
	if err != nil && s.stderr != nil && s.stderr.Len() > 0 {
		err = fmt.Errorf("%w: %s", err, stringsTrimSpaceSafe(s.stderr.String()))
	}
	return err
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
