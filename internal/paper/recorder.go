package paper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"chikoubot-go/internal/execution"
)

// JSONLRecorder appends fills as JSON lines so a paper session survives restarts.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	err  error
}

// NewJSONLRecorder creates/opens the target file in append mode.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open fill journal: %w", err)
	}
	return &JSONLRecorder{file: file, enc: json.NewEncoder(file)}, nil
}

// Record writes a single fill. The first write error is kept and reported by Err and Close.
func (r *JSONLRecorder) Record(fill execution.Fill) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil || r.err != nil {
		return
	}
	if err := r.enc.Encode(fill); err != nil {
		r.err = fmt.Errorf("journal fill %s: %w", fill.OrderID, err)
	}
}

// Err returns the first write error, if any.
func (r *JSONLRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Close syncs and closes the file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return r.err
	}
	syncErr := r.file.Sync()
	closeErr := r.file.Close()
	r.file = nil
	switch {
	case r.err != nil:
		return r.err
	case syncErr != nil:
		return syncErr
	}
	return closeErr
}
