package report

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"github.com/falkerops/partnerload/internal/utils"
)

// FailureLog is an append-only file listing records that could not be registered,
// one "<timestamp> - <reason>: <tax id>" line each. It outlives the console output so
// the operator can re-run just those rows.
type FailureLog struct {
	mu     sync.Mutex
	logger *log.Logger
	closer io.Closer
}

// OpenFailureLog opens (or creates) path for appending. An empty path discards entries.
func OpenFailureLog(path string) (*FailureLog, error) {
	if path == "" {
		return NewFailureLog(io.Discard), nil
	}
	if err := utils.EnsureFilepathExists(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open failure log %s: %w", path, err)
	}
	fl := NewFailureLog(f)
	fl.closer = f
	return fl, nil
}

// NewFailureLog writes entries to w.
func NewFailureLog(w io.Writer) *FailureLog {
	return &FailureLog{logger: log.New(w, "", log.Ldate|log.Ltime)}
}

// Record appends one entry.
func (f *FailureLog) Record(reason, taxID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logger.Printf("- %s: %s", reason, taxID)
}

// Close closes the underlying file, if any.
func (f *FailureLog) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
