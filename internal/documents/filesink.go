package documents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes documents into Dir. A file only appears once it is
// completely written.
type FileSink struct {
	Dir string
}

func (s FileSink) Save(ctx context.Context, filename string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if filename == "" || filename != filepath.Base(filename) {
		return fmt.Errorf("invalid document filename %q", filename)
	}
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filename+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filename, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, filename)); err != nil {
		return fmt.Errorf("rename %s: %w", filename, err)
	}
	return nil
}

// Path returns where filename is written.
func (s FileSink) Path(filename string) string {
	return filepath.Join(s.Dir, filename)
}
