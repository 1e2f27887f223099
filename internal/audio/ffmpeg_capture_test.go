package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"yessir/internal/ports"
)

const recorderScript = `#!/usr/bin/env bash
out="${@: -1}"
trap 'exit 0' INT
printf 'RIFF0000WAVE' > "$out"
while true; do sleep 0.05; done
`

func TestFFMPEGCaptureRecordsToTempFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, "capture.sh", recorderScript)
	capture := NewFFMPEGCapture(script, zaptest.NewLogger(t))

	session, err := capture.Start(context.Background(), ports.AudioConfig{TempDir: dir})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	artifact, err := session.Stop()
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if string(artifact.Data) != "RIFF0000WAVE" || artifact.ContentType != "audio/wav" {
		t.Fatalf("unexpected artifact: %q %s", artifact.Data, artifact.ContentType)
	}

	again, err := session.Stop()
	if err != nil || len(again.Data) != len(artifact.Data) {
		t.Fatalf("expected repeated stop to return the same artifact")
	}

	if err := session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	assertEmptyDir(t, dir)
}

func TestFFMPEGCaptureEmptyRecording(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, "silent.sh", "#!/usr/bin/env bash\ntrap 'exit 0' INT\nwhile true; do sleep 0.05; done\n")
	capture := NewFFMPEGCapture(script, zaptest.NewLogger(t))

	session, err := capture.Start(context.Background(), ports.AudioConfig{TempDir: dir})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer session.Close()

	if _, err := session.Stop(); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
}

func TestFFMPEGCaptureCloseWithoutStopDiscards(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, "capture.sh", recorderScript)
	capture := NewFFMPEGCapture(script, zaptest.NewLogger(t))

	session, err := capture.Start(context.Background(), ports.AudioConfig{TempDir: dir})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := session.Stop(); err == nil {
		t.Fatalf("expected stop after close to fail")
	}
	assertEmptyDir(t, dir)
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'boom' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{TempDir: dir})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEmptyDir(t, dir)
}

func TestNormalizeStopErrExitErrorIsIgnored(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-lc", "exit 1").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := normalizeStopErr(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected temporary recording removed, found %d entries", len(entries))
	}
}
