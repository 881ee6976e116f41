package monitor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/menatics/andromeda/pkg/observability"
)

// RunLog is the per-day log sink for monitoring runs. All runs of one
// calendar day append to the same file (monitor-YYYY-MM-DD.log) and
// mirror to the console writer. The file is created lazily on the first
// write, so a run skipped by the lock leaves no empty file behind.
type RunLog struct {
	Logger *observability.Logger

	file *lazyFile
}

// OpenRunLog prepares the log sink for a run on the given day
func OpenRunLog(dir string, day time.Time, console io.Writer, level observability.LogLevel) *RunLog {
	if console == nil {
		console = os.Stdout
	}

	path := filepath.Join(dir, fmt.Sprintf("monitor-%s.log", day.Format("2006-01-02")))
	file := &lazyFile{path: path}

	return &RunLog{
		Logger: observability.NewTextLogger(level, io.MultiWriter(file, console)),
		file:   file,
	}
}

// Path returns the log file path for the day
func (r *RunLog) Path() string {
	return r.file.path
}

// Close flushes and closes the underlying file if it was ever opened
func (r *RunLog) Close() error {
	return r.file.close()
}

// lazyFile opens its file in append mode on the first Write. A failed
// open degrades to console-only logging rather than failing the run.
type lazyFile struct {
	path string

	mu     sync.Mutex
	f      *os.File
	broken bool
}

func (l *lazyFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.broken {
		return len(p), nil
	}
	if l.f == nil {
		if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
			l.broken = true
			fmt.Fprintf(os.Stderr, "run log unavailable (%s): %v\n", l.path, err)
			return len(p), nil
		}
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			l.broken = true
			fmt.Fprintf(os.Stderr, "run log unavailable (%s): %v\n", l.path, err)
			return len(p), nil
		}
		l.f = f
	}

	return l.f.Write(p)
}

func (l *lazyFile) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
