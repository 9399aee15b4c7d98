package ledger

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"reg-mail-forwarder-go/internal/model"
)

// FileOpener opens file backed stores at the paths named in the run configuration.
type FileOpener struct{}

// Open creates the ledger and failure log files if absent
func (FileOpener) Open(cfg *model.RunConfig) (Store, error) {
	return OpenFileStore(cfg.LedgerPath, cfg.FailureLogPath)
}

// FileStore keeps one forwarded key per line and one failure per line.
// Files are only ever appended to.
type FileStore struct {
	ledgerPath  string
	failurePath string
	mu          sync.Mutex
}

// OpenFileStore ensures both files exist and returns a store over them
func OpenFileStore(ledgerPath, failurePath string) (*FileStore, error) {
	for _, path := range []string{ledgerPath, failurePath} {
		if path == "" {
			return nil, fmt.Errorf("%w: ledger and failure log paths are required", model.ErrConfig)
		}
		if err := touch(path); err != nil {
			return nil, err
		}
	}
	return &FileStore{ledgerPath: ledgerPath, failurePath: failurePath}, nil
}

func touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f.Close()
}

// AlreadyForwarded scans the ledger for key
func (s *FileStore) AlreadyForwarded(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.ledgerPath)
	if err != nil {
		return false, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == key {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to read ledger: %w", err)
	}
	return false, nil
}

// MarkForwarded appends key to the ledger and syncs it to disk
func (s *FileStore) MarkForwarded(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendLine(s.ledgerPath, key)
}

// Record appends a human readable failure line
func (s *FileStore) Record(entry model.FailureEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendLine(s.failurePath, FormatFailure(entry))
}

// Close is a no-op; files are opened per operation
func (s *FileStore) Close() error {
	return nil
}

// FormatFailure renders a failure entry as a single log line.
func FormatFailure(entry model.FailureEntry) string {
	at := entry.At
	if at.IsZero() {
		at = time.Now()
	}
	reg := entry.RegistrationNumber
	if reg == "" {
		reg = "-"
	}
	reason := strings.Join(strings.Fields(entry.Reason), " ")
	return fmt.Sprintf("%s Registration Number: %s, Message UID: %d, Reason: %s",
		at.Format(time.RFC3339), reg, entry.MessageUID, reason)
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return f.Close()
}
