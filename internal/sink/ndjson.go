package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashh-m/ytkeywordsearchtool/internal/harvest"
)

// NDJSONSink appends unified records to a newline-delimited JSON file. It
// doubles as the spill target when the primary sink is down, so opening it
// probes writability up front instead of failing mid-run.
type NDJSONSink struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewNDJSON opens (or creates) the file at path in append mode.
func NewNDJSON(path string) (*NDJSONSink, error) {
	if path == "" {
		return nil, fmt.Errorf("ndjson path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ndjson file: %w", err)
	}
	return &NDJSONSink{file: file, path: path}, nil
}

// AppendBatch writes each record as one JSON line and syncs the file, so a
// crash right after a batch loses nothing.
func (s *NDJSONSink) AppendBatch(ctx context.Context, records []harvest.UnifiedRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("ndjson sink is closed")
	}
	enc := json.NewEncoder(s.file)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write record %s: %w", rec.ID, err)
		}
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return nil
}

// Close closes the underlying file.
func (s *NDJSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", s.path, err)
	}
	return nil
}
