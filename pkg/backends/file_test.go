package backends

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wayneeseguin/flexlog/pkg/formatters"
	"github.com/wayneeseguin/flexlog/pkg/types"
)

func messageForFile(text string) *types.Message {
	m := &types.Message{Name: "file-test", Level: types.LevelInfo}
	m.Storage.Store(text)
	m.SetState(types.StateActive)
	m.SetRefCount(1)
	return m
}

func TestFileSinkWritesRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	sink, err := NewFileSink(DefaultFileOptions(path))
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	f := formatters.NewPatternFormatter("{message}")
	sink.Output(messageForFile("first"), f)
	sink.Output(messageForFile("second"), f)
	if err := sink.Flush(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\nsecond\n" {
		t.Errorf("file contents = %q", data)
	}
}

func TestFileSinkEmptyPathRejected(t *testing.T) {
	if _, err := NewFileSink(FileOptions{}); err == nil {
		t.Error("empty path must be rejected")
	}
}

func TestFileSinkCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "app.log")
	sink, err := NewFileSink(DefaultFileOptions(path))
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestFileSinkAutoFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	opts := DefaultFileOptions(path)
	opts.AutoFlush = true
	sink, err := NewFileSink(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	sink.Output(messageForFile("immediate"), formatters.NewPatternFormatter("{message}"))

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "immediate") {
		t.Errorf("auto-flush did not write through: %q", data)
	}
}

func TestFileSinkRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rot.log")
	opts := DefaultFileOptions(path)
	opts.EnableRotation = true
	opts.MaxFileSize = 64
	opts.AutoFlush = true
	sink, err := NewFileSink(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	f := formatters.NewPatternFormatter("{message}")
	payload := strings.Repeat("r", 40)
	for i := 0; i < 6; i++ {
		sink.Output(messageForFile(payload), f)
	}

	if sink.RotationCount() == 0 {
		t.Fatal("no rotation happened")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	rotated := 0
	for _, e := range entries {
		if e.Name() != "rot.log" && strings.HasPrefix(e.Name(), "rot.") {
			rotated++
			if !strings.HasSuffix(e.Name(), ".log") {
				t.Errorf("rotated name %q does not follow {basename}.{timestamp}.{ext}", e.Name())
			}
		}
	}
	if rotated == 0 {
		t.Error("no rotated files on disk")
	}

	// The live file stays under the limit after rotation.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() > opts.MaxFileSize {
		t.Errorf("live file size %d exceeds limit %d", info.Size(), opts.MaxFileSize)
	}
}

func TestFileSinkPrunesRotatedFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prune.log")
	opts := DefaultFileOptions(path)
	opts.EnableRotation = true
	opts.MaxFileSize = 32
	opts.MaxFiles = 2
	opts.AutoFlush = true
	sink, err := NewFileSink(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	f := formatters.NewPatternFormatter("{message}")
	for i := 0; i < 12; i++ {
		sink.Output(messageForFile(strings.Repeat("p", 30)), f)
	}

	entries, _ := os.ReadDir(dir)
	rotated := 0
	for _, e := range entries {
		if e.Name() != "prune.log" {
			rotated++
		}
	}
	if rotated > opts.MaxFiles {
		t.Errorf("%d rotated files kept, want <= %d", rotated, opts.MaxFiles)
	}
}

func TestFileSinkWithLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locked.log")
	opts := DefaultFileOptions(path)
	opts.EnableFileLock = true
	opts.AutoFlush = true
	sink, err := NewFileSink(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	sink.Output(messageForFile("locked write"), formatters.NewPatternFormatter("{message}"))
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "locked write") {
		t.Errorf("write under lock failed: %q", data)
	}
}

func TestFileSinkBatching(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batched.log")
	opts := DefaultFileOptions(path)
	opts.EnableBatching = true
	opts.BatchMaxBytes = 1 << 20
	opts.BatchMaxCount = 1000
	opts.BatchFlushInterval = time.Hour // only explicit flush
	sink, err := NewFileSink(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer sink.Close()

	f := formatters.NewPatternFormatter("{message}")
	sink.Output(messageForFile("batched"), f)

	if data, _ := os.ReadFile(path); len(data) != 0 {
		t.Errorf("batched write hit the disk before flush: %q", data)
	}
	if err := sink.Flush(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "batched") {
		t.Errorf("flush did not drain the batch: %q", data)
	}
}
