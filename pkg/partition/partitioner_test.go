package partition

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rogpeppe/go-internal/lockedfile"
)

func runJob(t *testing.T, src, dst string, cfg Config) (*Result, []Event, error) {
	t.Helper()

	var events []Event
	result, err := New(src, dst, cfg).
		WithProgress(func(ev Event) { events = append(events, ev) }).
		Run(context.Background())

	return result, events, err
}

func assertMonotonic(t *testing.T, events []Event) {
	t.Helper()

	if len(events) == 0 {
		t.Fatal("no progress events")
	}

	for i := 1; i < len(events); i++ {
		if events[i].Percent < events[i-1].Percent {
			t.Fatalf("percent decreased at event %d: %v -> %v", i, events[i-1].Percent, events[i].Percent)
		}
		if events[i].BytesProcessed < events[i-1].BytesProcessed {
			t.Fatalf("bytes decreased at event %d: %d -> %d", i, events[i-1].BytesProcessed, events[i].BytesProcessed)
		}
	}

	if last := events[len(events)-1]; last.Percent != 100 {
		t.Fatalf("last event percent = %v, want 100", last.Percent)
	}
}

func TestRun_EmptySource(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	result, events, err := runJob(t, src, dst, testConfig(MinSplitSize))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Archives) != 0 {
		t.Errorf("expected no archives, got %v", result.Archives)
	}
	if result.BytesProcessed != 0 {
		t.Errorf("bytes processed = %d", result.BytesProcessed)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one event, got %d", len(events))
	}
	if events[0].Percent != 100 || events[0].Description != descriptionNoFiles {
		t.Errorf("unexpected terminal event: %+v", events[0])
	}
}

func TestRun_SplitsBySize(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	contents := map[string][]byte{}
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		contents[name] = writeTestFile(t, src, name, 600_000)
	}

	result, events, err := runJob(t, src, dst, testConfig(MinSplitSize))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertMonotonic(t, events)

	if len(result.Archives) < 2 {
		t.Fatalf("expected at least 2 archives, got %d", len(result.Archives))
	}

	wantNames := []string{"archive001.zip", "archive002.zip", "archive003.zip"}
	for i, path := range result.Archives {
		if filepath.Base(path) != wantNames[i] {
			t.Errorf("archive %d = %s, want %s", i, filepath.Base(path), wantNames[i])
		}
		if size := archiveRawSize(t, path); size > result.Threshold {
			t.Errorf("%s holds %d raw bytes, threshold %d", path, size, result.Threshold)
		}
	}

	got := map[string][]byte{}
	for _, path := range result.Archives {
		for name, data := range readArchive(t, path) {
			got[name] = data
		}
	}
	if !reflect.DeepEqual(got, contents) {
		t.Error("archived contents differ from source")
	}

	if result.BytesProcessed != 1_800_000 || result.TotalBytes != 1_800_000 {
		t.Errorf("bytes = %d/%d", result.BytesProcessed, result.TotalBytes)
	}
	if result.HasWarnings() {
		t.Error("no special handling expected")
	}
	if result.Elapsed <= 0 {
		t.Error("elapsed time not recorded")
	}
}

func TestRun_PacksGreedilyInOrder(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()

	threshold := int(MinSplitSize)
	writeTestFile(t, src, "1.bin", 600_000)
	writeTestFile(t, src, "2.bin", 400_000)
	writeTestFile(t, src, "3.bin", 100_000)
	writeTestFile(t, src, "4.bin", threshold)
	writeTestFile(t, src, "5.bin", 0)
	writeTestFile(t, src, "6.bin", 10)

	var archives []*memArchive
	result, err := New(src, dst, testConfig(MinSplitSize)).
		WithArchiveOpener(memOpener(&archives, "")).
		Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := [][]string{
		{"1.bin", "2.bin"},
		{"3.bin"},
		{"4.bin", "5.bin"},
		{"6.bin"},
	}
	if len(archives) != len(want) {
		t.Fatalf("got %d archives, want %d", len(archives), len(want))
	}
	for i, a := range archives {
		if !reflect.DeepEqual(a.names, want[i]) {
			t.Errorf("archive %d entries = %v, want %v", i+1, a.names, want[i])
		}
		if !a.closed {
			t.Errorf("archive %d was not closed", i+1)
		}
	}

	if len(result.Archives) != 4 || filepath.Base(result.Archives[3]) != "archive004.zip" {
		t.Errorf("unexpected archive paths: %v", result.Archives)
	}
}

func TestRun_OversizedSkip(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTestFile(t, src, "huge.bin", 5<<20)

	cfg := testConfig(2 << 20)
	cfg.OversizedPolicy = PolicySkip

	result, events, err := runJob(t, src, dst, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertMonotonic(t, events)

	if len(result.Archives) != 0 {
		t.Errorf("expected no archives, got %v", result.Archives)
	}
	if len(result.SpecialHandling) != 1 {
		t.Fatalf("expected one special handling record, got %d", len(result.SpecialHandling))
	}

	rec := result.SpecialHandling[0]
	if rec.Policy != PolicySkip || rec.Output != "" || rec.Size != 5<<20 || rec.RelPath != "huge.bin" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if !result.HasWarnings() {
		t.Error("HasWarnings should be true")
	}
	if result.BytesProcessed != 5<<20 {
		t.Errorf("skipped bytes not counted: %d", result.BytesProcessed)
	}
}

func TestRun_OversizedFail(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTestFile(t, src, "huge.bin", 5<<20)
	writeTestFile(t, src, "small.bin", 1000)

	_, _, err := runJob(t, src, dst, testConfig(2<<20))

	var oversized *OversizedFileError
	if !errors.As(err, &oversized) {
		t.Fatalf("expected *OversizedFileError, got %v", err)
	}
	if !errors.Is(err, ErrOversizedFile) {
		t.Error("error should match ErrOversizedFile")
	}
	if filepath.Base(oversized.Path) != "huge.bin" || oversized.Size != 5<<20 || oversized.Limit != 2<<20 {
		t.Errorf("unexpected error fields: %+v", oversized)
	}
}

func TestRun_OversizedIsolate(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	bigA := writeTestFile(t, src, "x/big.dat", 3<<20)
	bigB := writeTestFile(t, src, "y/big.dat", 3<<20+1)
	small := writeTestFile(t, src, "small.txt", 1000)

	cfg := testConfig(2 << 20)
	cfg.OversizedPolicy = PolicyIsolate

	result, events, err := runJob(t, src, dst, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	assertMonotonic(t, events)

	var got []string
	for _, p := range result.Archives {
		got = append(got, filepath.Base(p))
	}
	want := []string{"large_file_big.dat.zip", "large_file_big.dat_2.zip", "archive001.zip"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("archives = %v, want %v", got, want)
	}

	if e := readArchive(t, result.Archives[0]); !bytes.Equal(e["x/big.dat"], bigA) || len(e) != 1 {
		t.Error("first isolated archive has wrong contents")
	}
	if e := readArchive(t, result.Archives[1]); !bytes.Equal(e["y/big.dat"], bigB) || len(e) != 1 {
		t.Error("second isolated archive has wrong contents")
	}
	if e := readArchive(t, result.Archives[2]); !bytes.Equal(e["small.txt"], small) {
		t.Error("sequence archive has wrong contents")
	}

	for i, rec := range result.SpecialHandling {
		if rec.Output != result.Archives[i] || rec.Policy != PolicyIsolate {
			t.Errorf("record %d = %+v", i, rec)
		}
	}
}

func TestRun_OversizedCopy(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	big := writeTestFile(t, src, "deep/nested/big.iso", 3<<20)
	writeTestFile(t, src, "small.txt", 10)

	// A stale copy from a previous run must be overwritten.
	stale := filepath.Join(dst, "deep", "nested", "big.iso")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(2 << 20)
	cfg.OversizedPolicy = PolicyCopyUncompressed

	result, events, err := runJob(t, src, dst, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	assertMonotonic(t, events)

	copied, err := os.ReadFile(stale)
	if err != nil {
		t.Fatalf("copy missing: %v", err)
	}
	if !bytes.Equal(copied, big) {
		t.Error("copy differs from source")
	}

	if len(result.SpecialHandling) != 1 || result.SpecialHandling[0].Output != stale {
		t.Errorf("unexpected records: %+v", result.SpecialHandling)
	}
	if len(result.Archives) != 1 {
		t.Errorf("expected one sequence archive, got %v", result.Archives)
	}
	if result.BytesProcessed != result.TotalBytes {
		t.Errorf("bytes = %d/%d", result.BytesProcessed, result.TotalBytes)
	}
}

func TestRun_SingleArchive(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	want := map[string][]byte{
		"root.txt":             writeTestFile(t, src, "root.txt", 100),
		"docs/readme.md":       writeTestFile(t, src, "docs/readme.md", 2000),
		"docs/img/logo.png":    writeTestFile(t, src, "docs/img/logo.png", 300_000),
		"data/2024/01/log.csv": writeTestFile(t, src, "data/2024/01/log.csv", 5<<20),
	}

	cfg := DefaultConfig()
	cfg.Strategy = SingleArchive
	cfg.SingleArchiveName = "everything.zip"

	result, events, err := runJob(t, src, dst, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	assertMonotonic(t, events)

	if len(result.Archives) != 1 || result.Archives[0] != filepath.Join(dst, "everything.zip") {
		t.Fatalf("unexpected archives: %v", result.Archives)
	}

	got := readArchive(t, result.Archives[0])
	if !reflect.DeepEqual(got, want) {
		var gotNames []string
		for name := range got {
			gotNames = append(gotNames, name)
		}
		sort.Strings(gotNames)
		t.Errorf("entries = %v", gotNames)
	}

	for _, ev := range events {
		if ev.ArchiveIndex != 1 {
			t.Fatalf("archive index = %d, want 1", ev.ArchiveIndex)
		}
	}
}

func TestRun_CompressedEstimate(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTestFile(t, src, "a.bin", 1_500_000)

	cfg := testConfig(MinSplitSize)
	cfg.SizeLimitKind = CompressedArchiveEstimate
	cfg.CompressionRatio = 0.5

	result, _, err := runJob(t, src, dst, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Threshold != 2*MinSplitSize {
		t.Errorf("threshold = %d, want %d", result.Threshold, 2*MinSplitSize)
	}
	if result.HasWarnings() {
		t.Error("file under the inflated threshold should not be oversized")
	}
}

func TestRun_DestinationInsideSource(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(src, "out")
	writeTestFile(t, src, "a.txt", 100)
	writeTestFile(t, src, "out/old.txt", 100)

	result, _, err := runJob(t, src, dst, testConfig(MinSplitSize))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.TotalFiles != 1 {
		t.Errorf("destination contents were enumerated: %d files", result.TotalFiles)
	}
	if _, err := os.Stat(filepath.Join(dst, lockFileName)); err != nil {
		t.Errorf("lock file should stay in the destination: %v", err)
	}
}

func TestRun_InvalidPaths(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		src   string
		dst   string
		field string
	}{
		{"missing source", filepath.Join(dir, "missing"), t.TempDir(), "Source"},
		{"source is a file", file, t.TempDir(), "Source"},
		{"empty source", "", t.TempDir(), "Source"},
		{"destination equals source", dir, dir, "Destination"},
		{"destination under a file", dir, filepath.Join(file, "out"), "Destination"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New(tt.src, tt.dst, testConfig(MinSplitSize)).Run(context.Background())
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Fatalf("expected %s ConfigError, got %v", tt.field, err)
			}
			if result != nil {
				t.Error("validation failures return no result")
			}
		})
	}
}

func TestRun_FileAccessError(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTestFile(t, src, "a.txt", 100)
	writeTestFile(t, src, "b.txt", 100)

	var archives []*memArchive
	result, err := New(src, dst, testConfig(MinSplitSize)).
		WithArchiveOpener(memOpener(&archives, "b.txt")).
		Run(context.Background())

	var accessErr *FileAccessError
	if !errors.As(err, &accessErr) {
		t.Fatalf("expected *FileAccessError, got %v", err)
	}
	if accessErr.Op != "write" || accessErr.Err == nil {
		t.Errorf("unexpected error: %+v", accessErr)
	}
	if !errors.Is(err, ErrFileAccess) {
		t.Error("error should match ErrFileAccess")
	}
	if len(archives) != 1 || !archives[0].closed {
		t.Error("archive must be closed on failure")
	}
	if result == nil || len(result.Archives) != 1 {
		t.Errorf("partial result should list the open archive: %+v", result)
	}
}

func TestRun_OpenerFailure(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTestFile(t, src, "a.txt", 100)

	boom := errors.New("disk full")
	_, err := New(src, dst, testConfig(MinSplitSize)).
		WithArchiveOpener(func(string, int) (ArchiveWriter, error) { return nil, boom }).
		Run(context.Background())

	var accessErr *FileAccessError
	if !errors.As(err, &accessErr) || accessErr.Op != "create archive" {
		t.Fatalf("expected create archive FileAccessError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Error("cause should be wrapped")
	}
}

func TestRun_CleanupOnFailure(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTestFile(t, src, "a/big.bin", 3<<20)
	writeTestFile(t, src, "b/big2.bin", 3<<20)

	calls := 0
	opener := func(path string, level int) (ArchiveWriter, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("quota exceeded")
		}
		return OpenZipArchive(path, level)
	}

	for _, cleanup := range []bool{false, true} {
		calls = 0
		cfg := testConfig(2 << 20)
		cfg.OversizedPolicy = PolicyIsolate
		cfg.CleanupOnFailure = cleanup

		_, err := New(src, dst, cfg).WithArchiveOpener(opener).Run(context.Background())
		if !errors.Is(err, ErrFileAccess) {
			t.Fatalf("expected ErrFileAccess, got %v", err)
		}

		_, statErr := os.Stat(filepath.Join(dst, "large_file_big.bin.zip"))
		if cleanup && !os.IsNotExist(statErr) {
			t.Error("partial archive should have been removed")
		}
		if !cleanup && statErr != nil {
			t.Errorf("partial archive should be kept: %v", statErr)
		}
	}
}

func TestRun_Cancellation(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTestFile(t, src, "a.bin", 10*DefaultChunkSize)
	writeTestFile(t, src, "b.bin", 10*DefaultChunkSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var events []Event
	result, err := New(src, dst, DefaultConfig()).
		WithProgress(func(ev Event) {
			events = append(events, ev)
			if len(events) == 3 {
				cancel()
			}
		}).
		Run(ctx)

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrFileAccess) {
		t.Error("cancellation must not look like an access failure")
	}

	// Cancellation is observed before the next chunk.
	if len(events) != 3 {
		t.Errorf("expected 3 events before cancellation, got %d", len(events))
	}

	if len(result.Archives) != 1 {
		t.Fatalf("expected the open archive in the result, got %v", result.Archives)
	}
	// The archive was closed, so its central directory is readable.
	readArchive(t, result.Archives[0])
}

func TestRun_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(t.TempDir(), t.TempDir(), DefaultConfig()).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_ConcurrentJobs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrent jobs in short mode")
	}

	const jobs = 4
	errs := make(chan error, jobs)

	for i := 0; i < jobs; i++ {
		src, dst := t.TempDir(), t.TempDir()
		writeTestFile(t, src, "a.bin", 700_000)
		writeTestFile(t, src, "b.bin", 700_000)

		go func() {
			_, err := New(src, dst, testConfig(MinSplitSize)).Run(context.Background())
			errs <- err
		}()
	}

	for i := 0; i < jobs; i++ {
		if err := <-errs; err != nil {
			t.Errorf("job failed: %v", err)
		}
	}
}

func TestRun_OutputsSurviveTheJob(t *testing.T) {
	t.Run("isolated and sequence archives", func(t *testing.T) {
		src, dst := t.TempDir(), t.TempDir()
		want := map[string][]byte{
			"a.bin":         writeTestFile(t, src, "a.bin", 700_000),
			"b.bin":         writeTestFile(t, src, "b.bin", 700_000),
			"big/movie.mkv": writeTestFile(t, src, "big/movie.mkv", 3<<20),
			"c/d.txt":       writeTestFile(t, src, "c/d.txt", 1000),
		}

		cfg := testConfig(MinSplitSize)
		cfg.OversizedPolicy = PolicyIsolate

		result, _, err := runJob(t, src, dst, cfg)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		gotNames := topLevelNames(t, dst)
		wantNames := []string{".partition.lock", "archive001.zip", "archive002.zip", "large_file_movie.mkv.zip"}
		if !reflect.DeepEqual(gotNames, wantNames) {
			t.Fatalf("destination holds %v, want %v", gotNames, wantNames)
		}

		if got := readOutputs(t, result); !reflect.DeepEqual(got, want) {
			t.Errorf("outputs hold %d files, want %d with identical contents", len(got), len(want))
		}
	})

	t.Run("verbatim copies and sequence archives", func(t *testing.T) {
		src, dst := t.TempDir(), t.TempDir()
		want := map[string][]byte{
			"a.bin":               writeTestFile(t, src, "a.bin", 700_000),
			"b.bin":               writeTestFile(t, src, "b.bin", 700_000),
			"docs/archive001.zip": writeTestFile(t, src, "docs/archive001.zip", 2<<20),
			"zz.iso":              writeTestFile(t, src, "zz.iso", 3<<20),
		}

		cfg := testConfig(MinSplitSize)
		cfg.OversizedPolicy = PolicyCopyUncompressed

		result, events, err := runJob(t, src, dst, cfg)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		// Copies run before any archive exists; afterwards the index follows
		// archive creation.
		last := 0
		for i, ev := range events {
			if ev.ArchiveIndex < last {
				t.Fatalf("archive index went back at event %d: %d -> %d", i, last, ev.ArchiveIndex)
			}
			last = ev.ArchiveIndex
		}
		if events[0].ArchiveIndex != 0 || last != 2 {
			t.Errorf("archive index ran from %d to %d, want 0 to 2", events[0].ArchiveIndex, last)
		}

		gotNames := topLevelNames(t, dst)
		wantNames := []string{".partition.lock", "archive001.zip", "archive002.zip", "docs", "zz.iso"}
		if !reflect.DeepEqual(gotNames, wantNames) {
			t.Fatalf("destination holds %v, want %v", gotNames, wantNames)
		}

		got := readOutputs(t, result)
		for rel, data := range want {
			if !bytes.Equal(got[rel], data) {
				t.Errorf("%s was not preserved (%d bytes, want %d)", rel, len(got[rel]), len(data))
			}
		}
		if len(got) != len(want) {
			t.Errorf("outputs hold %d files, want %d", len(got), len(want))
		}
	})
}

func TestRun_CopyRejectsReservedNames(t *testing.T) {
	tests := []struct {
		name string
		rel  string
	}{
		{"sequence archive", "archive001.zip"},
		{"sequence archive upper case", "ARCHIVE002.ZIP"},
		{"isolated archive", "large_file_big.iso.zip"},
		{"lock file", ".partition.lock"},
		{"directory named like an archive", "archive001.zip/inner.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dst := t.TempDir(), t.TempDir()
			big := writeTestFile(t, src, tt.rel, 2<<20)
			writeTestFile(t, src, "small.txt", 100)

			cfg := testConfig(MinSplitSize)
			cfg.OversizedPolicy = PolicyCopyUncompressed

			result, _, err := runJob(t, src, dst, cfg)
			if !errors.Is(err, ErrReservedName) {
				t.Fatalf("expected ErrReservedName, got %v", err)
			}
			if !errors.Is(err, ErrFileAccess) {
				t.Error("error should match ErrFileAccess")
			}

			if len(result.Archives) != 0 || len(result.SpecialHandling) != 0 {
				t.Errorf("nothing should be written: %+v", result)
			}
			if names := topLevelNames(t, dst); !reflect.DeepEqual(names, []string{".partition.lock"}) {
				t.Errorf("destination holds %v", names)
			}

			data, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(tt.rel)))
			if err != nil || !bytes.Equal(data, big) {
				t.Error("source file was modified")
			}
		})
	}
}

func TestRun_ZeroCompressionLevelCompresses(t *testing.T) {
	data := bytes.Repeat([]byte("a"), 1<<20)

	tests := []struct {
		name       string
		level      int
		compressed bool
	}{
		{"zero value", 0, true},
		{"store only", StoreOnly, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dst := t.TempDir(), t.TempDir()
			if err := os.WriteFile(filepath.Join(src, "a.txt"), data, 0o644); err != nil {
				t.Fatal(err)
			}

			cfg := Config{
				Strategy:         SplitBySize,
				MaxSizeBytes:     4 << 20,
				CompressionRatio: 0.7,
				CompressionLevel: tt.level,
			}

			result, _, err := runJob(t, src, dst, cfg)
			if err != nil {
				t.Fatalf("Run failed: %v", err)
			}

			info, err := os.Stat(result.Archives[0])
			if err != nil {
				t.Fatal(err)
			}

			if tt.compressed && info.Size() >= int64(len(data))/10 {
				t.Errorf("archive is %d bytes for %d raw bytes", info.Size(), len(data))
			}
			if !tt.compressed && info.Size() < int64(len(data)) {
				t.Errorf("stored archive is %d bytes, smaller than %d raw bytes", info.Size(), len(data))
			}

			if e := readArchive(t, result.Archives[0]); !bytes.Equal(e["a.txt"], data) {
				t.Error("entry content differs")
			}
		})
	}
}

func TestRun_WaitsForDestinationLock(t *testing.T) {
	src, dst := t.TempDir(), t.TempDir()
	writeTestFile(t, src, "a.txt", 100)

	unlock, err := lockedfile.MutexAt(filepath.Join(dst, lockFileName)).Lock()
	if err != nil {
		t.Fatalf("failed to lock destination: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := New(src, dst, testConfig(MinSplitSize)).Run(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		unlock()
		t.Fatalf("job ran while the destination was locked: %v", err)
	case <-time.After(100 * time.Millisecond):
	}

	if _, err := os.Stat(filepath.Join(dst, "archive001.zip")); !os.IsNotExist(err) {
		t.Error("archive written while the destination was locked")
	}

	unlock()
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}
}

func TestRun_SameDestinationSerialised(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping shared destination jobs in short mode")
	}

	const jobs = 3
	dst := t.TempDir()
	tracker := &openTracker{}
	errs := make(chan error, jobs)

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		src := t.TempDir()
		writeTestFile(t, src, "a.bin", 700_000)
		writeTestFile(t, src, "b.bin", 700_000)

		wg.Add(1)
		go func(delay time.Duration) {
			defer wg.Done()
			time.Sleep(delay)
			_, err := New(src, dst, testConfig(MinSplitSize)).
				WithArchiveOpener(tracker.opener).
				Run(context.Background())
			errs <- err
		}(time.Duration(i) * 10 * time.Millisecond)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("job failed: %v", err)
		}
	}

	if atomic.LoadInt32(&tracker.overlap) != 0 {
		t.Fatal("two jobs wrote into the same destination at once")
	}
	if _, err := os.Stat(filepath.Join(dst, lockFileName)); err != nil {
		t.Errorf("lock file should stay in the destination: %v", err)
	}
	for _, name := range []string{"archive001.zip", "archive002.zip"} {
		if raw := archiveRawSize(t, filepath.Join(dst, name)); raw != 700_000 {
			t.Errorf("%s holds %d raw bytes, want 700000", name, raw)
		}
	}
}
