package notifications

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/perfwatch/perfwatch/internal/alerting"
)

// FileChannel appends one formatted line per alert to a log file.
type FileChannel struct {
	mu   sync.Mutex
	name string
	path string
}

func NewFileChannel(name, path string) (*FileChannel, error) {
	if path == "" {
		return nil, fmt.Errorf("file channel %q requires a path", name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating alert log directory: %w", err)
	}
	return &FileChannel{name: name, path: path}, nil
}

func (c *FileChannel) Name() string { return c.name }
func (c *FileChannel) Type() string { return "file" }

func (c *FileChannel) Send(_ context.Context, alert *alerting.EnhancedAlert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("opening alert log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, formatAlertLine(alert)); err != nil {
		return fmt.Errorf("writing alert log: %w", err)
	}
	return nil
}
