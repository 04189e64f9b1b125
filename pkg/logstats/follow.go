package logstats

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Follow tails the log file from its current end, rendering each new entry
// as an annotated line. It blocks until ctx is cancelled or the watcher
// fails. Lines that are not log records are passed through dimmed.
func Follow(ctx context.Context, path string, out io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	tail := &lineTail{file: file, out: out}
	defer tail.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if _, err := file.Seek(stat.Size(), io.SeekStart); err != nil {
		return fmt.Errorf("seek log file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating log watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory, not the file: log rotation replaces the inode.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching log dir: %w", err)
	}

	// The ticker backstops the watcher so appends that arrive without an
	// event (network filesystems, missed notifications) still show up.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-watcher.Events:
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				// Rotation: finish the old file, then follow the new one
				// from its beginning.
				if err := tail.drain(); err != nil {
					return err
				}
				if err := tail.reopen(path); err != nil {
					return err
				}
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := tail.drain(); err != nil {
				return err
			}
		case <-ticker.C:
			if err := tail.drain(); err != nil {
				return err
			}
		case err := <-watcher.Errors:
			return fmt.Errorf("log watcher error: %w", err)
		}
	}
}

// lineTail reads complete lines from a file as they are appended, holding a
// partial trailing line until the rest arrives.
type lineTail struct {
	file *os.File
	out  io.Writer
	buf  []byte
}

// reopen switches to a freshly created file at the same path, reading the
// new file from its beginning.
func (t *lineTail) reopen(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("reopening rotated log: %w", err)
	}
	t.file.Close()
	t.file = f
	t.buf = nil
	return nil
}

func (t *lineTail) Close() error {
	return t.file.Close()
}

func (t *lineTail) drain() error {
	chunk := make([]byte, 4096)
	for {
		n, err := t.file.Read(chunk)
		if n > 0 {
			t.buf = append(t.buf, chunk[:n]...)
			if writeErr := t.flushLines(); writeErr != nil {
				return writeErr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (t *lineTail) flushLines() error {
	for {
		i := bytes.IndexByte(t.buf, '\n')
		if i < 0 {
			return nil
		}
		line := string(t.buf[:i])
		t.buf = t.buf[i+1:]

		var err error
		if e, ok := ParseLine(line); ok {
			_, err = fmt.Fprintln(t.out, FormatEntry(e))
		} else if strings.TrimSpace(line) != "" {
			_, err = fmt.Fprintln(t.out, dimStyle.Render(line))
		}
		if err != nil {
			return err
		}
	}
}
