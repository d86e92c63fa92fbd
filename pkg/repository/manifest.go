package repository

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zip"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
	"github.com/tragoedia0722/partition/pkg/partition"
)

// JobRecord is the persisted summary of one partition job.
type JobRecord struct {
	ID              string          `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	Source          string          `json:"source"`
	Destination     string          `json:"destination"`
	Strategy        string          `json:"strategy"`
	Threshold       int64           `json:"threshold"`
	TotalFiles      int             `json:"total_files"`
	TotalBytes      int64           `json:"total_bytes"`
	BytesProcessed  int64           `json:"bytes_processed"`
	Elapsed         time.Duration   `json:"elapsed"`
	Archives        []ArchiveRef    `json:"archives,omitempty"`
	SpecialHandling []SpecialRecord `json:"special_handling,omitempty"`
}

type ArchiveRef struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	ContentCID  string `json:"content_cid"`
	ManifestCID string `json:"manifest_cid"`
	Bytes       int64  `json:"bytes"`
	Entries     int    `json:"entries"`
}

type SpecialRecord struct {
	RelPath string `json:"rel_path"`
	Size    int64  `json:"size"`
	Policy  string `json:"policy"`
	Output  string `json:"output,omitempty"`
	Reason  string `json:"reason"`
}

// PartitionResult rebuilds the parts of a partition.Result that a validator
// needs: archive paths and special handling.
func (r *JobRecord) PartitionResult() (*partition.Result, error) {
	strategy, err := partition.ParseStrategy(r.Strategy)
	if err != nil {
		return nil, err
	}

	result := &partition.Result{
		Strategy:       strategy,
		Threshold:      r.Threshold,
		TotalFiles:     r.TotalFiles,
		TotalBytes:     r.TotalBytes,
		BytesProcessed: r.BytesProcessed,
		Elapsed:        r.Elapsed,
	}
	for _, a := range r.Archives {
		result.Archives = append(result.Archives, a.Path)
	}
	for _, sh := range r.SpecialHandling {
		policy, err := partition.ParseOversizedPolicy(sh.Policy)
		if err != nil {
			return nil, err
		}
		result.SpecialHandling = append(result.SpecialHandling, partition.SpecialHandling{
			Path:    filepath.Join(r.Source, filepath.FromSlash(sh.RelPath)),
			RelPath: sh.RelPath,
			Size:    sh.Size,
			Policy:  policy,
			Output:  sh.Output,
			Reason:  sh.Reason,
		})
	}
	return result, nil
}

// ArchiveManifest lists the entries of one archive as written.
type ArchiveManifest struct {
	Archive    string          `json:"archive"`
	ContentCID string          `json:"content_cid"`
	Bytes      int64           `json:"bytes"`
	Entries    []ManifestEntry `json:"entries"`
}

type ManifestEntry struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	CRC32    uint32    `json:"crc32"`
	Modified time.Time `json:"modified"`
}

// RawBytes sums the uncompressed sizes of all entries.
func (m *ArchiveManifest) RawBytes() int64 {
	var total int64
	for _, e := range m.Entries {
		total += e.Size
	}
	return total
}

// BuildManifest reads the central directory of the ZIP at path and hashes the
// whole file into a raw-codec CIDv1.
func BuildManifest(path string) (*ArchiveManifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", path, err)
	}

	m := &ArchiveManifest{
		Archive: filepath.Base(path),
		Bytes:   info.Size(),
		Entries: make([]ManifestEntry, 0, len(zr.File)),
	}
	for _, zf := range zr.File {
		m.Entries = append(m.Entries, ManifestEntry{
			Name:     zf.Name,
			Size:     int64(zf.UncompressedSize64),
			CRC32:    zf.CRC32,
			Modified: zf.Modified.UTC(),
		})
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	if m.ContentCID, err = contentCID(f); err != nil {
		return nil, fmt.Errorf("hash archive %s: %w", path, err)
	}

	return m, nil
}

func contentCID(r io.Reader) (string, error) {
	sum, err := mh.SumStream(r, mh.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(uint64(multicodec.Raw), sum).String(), nil
}
