package partition

import (
	"bytes"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
)

// writeTestFile creates dir/rel with size pseudo-random bytes and returns its content.
func writeTestFile(t *testing.T, dir, rel string, size int) []byte {
	t.Helper()

	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size) + int64(len(rel)))).Read(data)

	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}

	return data
}

// readArchive returns entry name -> content for every entry of a ZIP file.
func readArchive(t *testing.T, path string) map[string][]byte {
	t.Helper()

	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("failed to open archive %s: %v", path, err)
	}
	defer r.Close()

	entries := make(map[string][]byte, len(r.File))
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("failed to read entry %s: %v", f.Name, err)
		}
		entries[f.Name] = data
	}

	return entries
}

// archiveRawSize sums the uncompressed sizes of every entry in a ZIP file.
func archiveRawSize(t *testing.T, path string) int64 {
	t.Helper()

	var total int64
	for _, data := range readArchive(t, path) {
		total += int64(len(data))
	}
	return total
}

func testConfig(maxSize int64) Config {
	cfg := DefaultConfig()
	cfg.MaxSizeBytes = maxSize
	return cfg
}

// memArchive is an in-memory ArchiveWriter that records entries in order.
type memArchive struct {
	path    string
	names   []string
	entries map[string]*bytes.Buffer
	closed  bool
	failOn  string
}

func (m *memArchive) CreateEntry(name string, _ time.Time) (io.Writer, error) {
	buf := &bytes.Buffer{}
	m.names = append(m.names, name)
	m.entries[name] = buf
	if name == m.failOn {
		return failingWriter{}, nil
	}
	return buf, nil
}

func (m *memArchive) Close() error {
	m.closed = true
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, io.ErrShortWrite
}

// memOpener returns an ArchiveOpener that keeps every archive in memory.
func memOpener(archives *[]*memArchive, failOn string) ArchiveOpener {
	return func(path string, _ int) (ArchiveWriter, error) {
		a := &memArchive{path: path, entries: make(map[string]*bytes.Buffer), failOn: failOn}
		*archives = append(*archives, a)
		return a, nil
	}
}

// openTracker wraps OpenZipArchive and records whether two archives were ever
// open at the same time.
type openTracker struct {
	active  int32
	overlap int32
}

func (o *openTracker) opener(path string, level int) (ArchiveWriter, error) {
	if atomic.AddInt32(&o.active, 1) > 1 {
		atomic.StoreInt32(&o.overlap, 1)
	}

	aw, err := OpenZipArchive(path, level)
	if err != nil {
		atomic.AddInt32(&o.active, -1)
		return nil, err
	}

	// Widen the window in which a second writer could slip in.
	time.Sleep(20 * time.Millisecond)
	return &trackedArchive{ArchiveWriter: aw, tracker: o}, nil
}

type trackedArchive struct {
	ArchiveWriter
	tracker *openTracker
}

func (a *trackedArchive) Close() error {
	atomic.AddInt32(&a.tracker.active, -1)
	return a.ArchiveWriter.Close()
}

// readOutputs returns relative path -> content for every file a job stored,
// read back from its archives and verbatim copies after the job finished.
func readOutputs(t *testing.T, result *Result) map[string][]byte {
	t.Helper()

	outputs := make(map[string][]byte)
	for _, archive := range result.Archives {
		for name, data := range readArchive(t, archive) {
			if _, dup := outputs[name]; dup {
				t.Errorf("entry %s stored twice", name)
			}
			outputs[name] = data
		}
	}

	for _, rec := range result.SpecialHandling {
		if rec.Policy != PolicyCopyUncompressed {
			continue
		}
		data, err := os.ReadFile(rec.Output)
		if err != nil {
			t.Fatalf("failed to read copy %s: %v", rec.Output, err)
		}
		outputs[rec.RelPath] = data
	}

	return outputs
}

// topLevelNames lists the names directly under dir, sorted.
func topLevelNames(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
