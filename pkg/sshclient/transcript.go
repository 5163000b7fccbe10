package sshclient

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// transcript appends a timestamped record of everything sent to and
// received from one device. A nil transcript is valid and discards writes,
// so connections log unconditionally.
type transcript struct {
	file *os.File
	mu   sync.Mutex
}

// newTranscript creates the per-device transcript file under dir. The file
// name carries the hostname and a short unique suffix so repeated batches
// against the same device never collide.
func newTranscript(dir, hostname string) (*transcript, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory %s: %w", dir, err)
	}

	name := fmt.Sprintf("%s-%s.log", hostname, uuid.New().String()[:8])
	file, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript file %s: %w", name, err)
	}

	t := &transcript{file: file}
	t.record("session", fmt.Sprintf("transcript opened for %s", hostname))
	return t, nil
}

// record appends one timestamped event. direction is "send", "recv" or
// "session".
func (t *transcript) record(direction, text string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.file, "%s [%s] %s\n", time.Now().UTC().Format(time.RFC3339), direction, text)
}

// Close flushes and closes the transcript file.
func (t *transcript) Close() {
	if t == nil {
		return
	}
	t.record("session", "transcript closed")
	t.mu.Lock()
	defer t.mu.Unlock()
	t.file.Close()
}
