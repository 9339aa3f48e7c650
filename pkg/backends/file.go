package backends

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"bufio"

	"github.com/gofrs/flock"

	"github.com/wayneeseguin/flexlog/internal/buffer"
	"github.com/wayneeseguin/flexlog/pkg/types"
)

// DefaultFileBufferSize is the bufio writer size for file sinks.
const DefaultFileBufferSize = 32 * 1024

// DefaultRotationPattern names rotated files. {basename} and {ext} come
// from the configured path; {timestamp} is the rotation instant.
const DefaultRotationPattern = "{basename}.{timestamp}.{ext}"

const rotationTimestampLayout = "20060102-150405.000000000"

// FileOptions configures a FileSink.
type FileOptions struct {
	Path string

	CreateDir      bool // create the parent directory if missing
	TruncateOnOpen bool // truncate instead of appending
	AutoFlush      bool // flush the buffer after every write
	BufferSize     int
	LineEnding     string

	EnableRotation  bool
	MaxFileSize     int64 // rotate when the file would exceed this
	MaxFiles        int   // rotated files to keep; 0 keeps everything
	RotationPattern string

	// EnableFileLock serializes writes across processes sharing the file.
	EnableFileLock bool

	// EnableBatching coalesces writes through a BatchWriter.
	EnableBatching     bool
	BatchMaxBytes      int
	BatchMaxCount      int
	BatchFlushInterval time.Duration
}

// DefaultFileOptions returns the options NewFileSink starts from.
func DefaultFileOptions(path string) FileOptions {
	return FileOptions{
		Path:            path,
		CreateDir:       true,
		BufferSize:      DefaultFileBufferSize,
		LineEnding:      "\n",
		MaxFileSize:     10 * 1024 * 1024,
		MaxFiles:        5,
		RotationPattern: DefaultRotationPattern,
	}
}

// FileSink writes formatted records to a file, optionally rotating by size
// and locking across processes.
type FileSink struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	batch   *buffer.BatchWriter
	lock    *flock.Flock
	size    int64
	options FileOptions

	errorCount    atomic.Uint64
	rotationCount atomic.Uint64
}

// NewFileSink opens (or creates) the file at options.Path.
func NewFileSink(options FileOptions) (*FileSink, error) {
	if options.Path == "" {
		return nil, fmt.Errorf("file sink: empty path")
	}
	if options.BufferSize <= 0 {
		options.BufferSize = DefaultFileBufferSize
	}
	if options.LineEnding == "" {
		options.LineEnding = "\n"
	}
	if options.RotationPattern == "" {
		options.RotationPattern = DefaultRotationPattern
	}

	if options.CreateDir {
		if err := os.MkdirAll(filepath.Dir(options.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}

	s := &FileSink{options: options}
	if options.EnableFileLock {
		s.lock = flock.New(options.Path + ".lock")
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSink) open() error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if s.options.TruncateOnOpen {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}
	file, err := os.OpenFile(filepath.Clean(s.options.Path), flags, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	s.file = file
	s.size = info.Size()
	s.writer = bufio.NewWriterSize(file, s.options.BufferSize)
	if s.options.EnableBatching {
		s.batch = buffer.NewBatchWriter(s.writer, s.options.BatchMaxBytes, s.options.BatchMaxCount, s.options.BatchFlushInterval)
	}
	return nil
}

// Output implements types.Sink.
func (s *FileSink) Output(msg *types.Message, formatter types.Formatter) {
	data, err := formatter.Format(msg)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if !strings.HasSuffix(string(data), s.options.LineEnding) {
		data = append(data, s.options.LineEnding...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.options.EnableFileLock && s.lock != nil {
		if err := s.lock.Lock(); err != nil {
			s.errorCount.Add(1)
			return
		}
		defer func() { _ = s.lock.Unlock() }()
	}

	if s.options.EnableRotation && s.options.MaxFileSize > 0 && s.size+int64(len(data)) > s.options.MaxFileSize {
		if err := s.rotateLocked(); err != nil {
			s.errorCount.Add(1)
		}
	}

	if s.batch != nil {
		if _, err := s.batch.Write(data); err != nil {
			s.errorCount.Add(1)
			return
		}
	} else {
		if _, err := s.writer.Write(data); err != nil {
			s.errorCount.Add(1)
			return
		}
		if s.options.AutoFlush {
			if err := s.writer.Flush(); err != nil {
				s.errorCount.Add(1)
				return
			}
		}
	}
	s.size += int64(len(data))
}

// Flush implements types.Sink.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *FileSink) flushLocked() error {
	if s.batch != nil {
		if err := s.batch.Flush(); err != nil {
			return err
		}
	}
	if s.writer != nil {
		return s.writer.Flush()
	}
	return nil
}

// Close flushes and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch != nil {
		_ = s.batch.Close()
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// Size returns the current file size including buffered bytes.
func (s *FileSink) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// ErrorCount returns the number of failed operations.
func (s *FileSink) ErrorCount() uint64 { return s.errorCount.Load() }

// RotationCount returns how many times the file has rotated.
func (s *FileSink) RotationCount() uint64 { return s.rotationCount.Load() }

// rotateLocked closes the current file, renames it according to the
// rotation pattern, prunes old rotations, and reopens a fresh file.
func (s *FileSink) rotateLocked() error {
	if err := s.flushLocked(); err != nil {
		return err
	}
	if err := s.file.Close(); err != nil {
		return err
	}

	rotated := s.rotatedName(time.Now())
	if err := os.Rename(s.options.Path, rotated); err != nil {
		// Reopen regardless so logging continues on the original path.
		_ = s.reopen()
		return err
	}

	s.rotationCount.Add(1)
	if s.options.MaxFiles > 0 {
		s.pruneRotated()
	}
	return s.reopen()
}

func (s *FileSink) reopen() error {
	truncate := s.options.TruncateOnOpen
	s.options.TruncateOnOpen = false
	err := s.open()
	s.options.TruncateOnOpen = truncate
	return err
}

func (s *FileSink) rotatedName(now time.Time) string {
	dir := filepath.Dir(s.options.Path)
	base := filepath.Base(s.options.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	ext = strings.TrimPrefix(ext, ".")

	name := s.options.RotationPattern
	name = strings.ReplaceAll(name, "{basename}", stem)
	name = strings.ReplaceAll(name, "{timestamp}", now.Format(rotationTimestampLayout))
	name = strings.ReplaceAll(name, "{ext}", ext)
	return filepath.Join(dir, name)
}

// pruneRotated removes the oldest rotated files beyond MaxFiles. Rotated
// names sort chronologically because the timestamp layout is fixed-width.
func (s *FileSink) pruneRotated() {
	dir := filepath.Dir(s.options.Path)
	base := filepath.Base(s.options.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	var rotated []string
	for _, e := range entries {
		name := e.Name()
		if name == base || e.IsDir() {
			continue
		}
		if strings.HasPrefix(name, stem+".") {
			rotated = append(rotated, name)
		}
	}
	if len(rotated) <= s.options.MaxFiles {
		return
	}
	sort.Strings(rotated)
	for _, name := range rotated[:len(rotated)-s.options.MaxFiles] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}
