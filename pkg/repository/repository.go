// Package repository keeps a catalog of partition jobs: one record per job and
// one manifest block per produced archive, addressed by CID.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ipfs/boxo/blockstore"
	blocks "github.com/ipfs/go-block-format"
	"github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	ipld "github.com/ipfs/go-ipld-format"
	"github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
	"github.com/tragoedia0722/partition/internal/storage"
	"github.com/tragoedia0722/partition/pkg/partition"
)

// DefaultPath is the catalog location used by the CLI.
const DefaultPath = "~/.partition"

const jobsPrefix = "/jobs"

var (
	ErrNotFound   = errors.New("repository: not found")
	ErrInvalidCID = errors.New("repository: invalid cid")
)

type Repository struct {
	mu         sync.Mutex
	storage    *storage.Storage
	blockStore blockstore.Blockstore
	builder    cid.Builder
	now        func() time.Time
}

// NewRepository opens the catalog at path, creating it on first use.
func NewRepository(path string) (*Repository, error) {
	s, err := storage.Open(path)
	if err != nil {
		return nil, err
	}

	return &Repository{
		storage:    s,
		blockStore: blockstore.NewBlockstore(s.Datastore()),
		builder: cid.V1Builder{
			Codec:    uint64(multicodec.Json),
			MhType:   mh.SHA2_256,
			MhLength: -1,
		},
		now: time.Now,
	}, nil
}

func (r *Repository) Path() string {
	return r.storage.Path()
}

func (r *Repository) Usage(ctx context.Context) (uint64, error) {
	return r.storage.Usage(ctx)
}

func (r *Repository) Close() error {
	if r.storage == nil {
		return nil
	}
	return r.storage.Close()
}

func (r *Repository) Destroy() error {
	if r.storage == nil {
		return nil
	}
	return r.storage.Destroy()
}

// RecordJob builds a manifest for every archive in result, stores the
// manifests as blocks and persists the job record. Archives that no longer
// exist on disk are an error; records are only written for complete jobs.
func (r *Repository) RecordJob(ctx context.Context, source, destination string, result *partition.Result) (*JobRecord, error) {
	if result == nil {
		return nil, errors.New("repository: nil result")
	}

	rec := &JobRecord{
		CreatedAt:      r.now().UTC(),
		Source:         absPath(source),
		Destination:    absPath(destination),
		Strategy:       result.Strategy.String(),
		Threshold:      result.Threshold,
		TotalFiles:     result.TotalFiles,
		TotalBytes:     result.TotalBytes,
		BytesProcessed: result.BytesProcessed,
		Elapsed:        result.Elapsed,
	}

	manifests := make([]blocks.Block, 0, len(result.Archives))
	for _, path := range result.Archives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		manifest, err := BuildManifest(path)
		if err != nil {
			return nil, err
		}

		blk, err := r.manifestBlock(manifest)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, blk)

		rec.Archives = append(rec.Archives, ArchiveRef{
			Name:        manifest.Archive,
			Path:        path,
			ContentCID:  manifest.ContentCID,
			ManifestCID: blk.Cid().String(),
			Bytes:       manifest.Bytes,
			Entries:     len(manifest.Entries),
		})
	}

	for _, sh := range result.SpecialHandling {
		rec.SpecialHandling = append(rec.SpecialHandling, SpecialRecord{
			RelPath: sh.RelPath,
			Size:    sh.Size,
			Policy:  sh.Policy.String(),
			Output:  sh.Output,
			Reason:  sh.Reason,
		})
	}

	if len(manifests) > 0 {
		if err := r.blockStore.PutMany(ctx, manifests); err != nil {
			return nil, fmt.Errorf("store manifests: %w", err)
		}
	}

	if err := r.putRecord(ctx, rec); err != nil {
		return nil, err
	}

	return rec, nil
}

func (r *Repository) manifestBlock(m *ArchiveManifest) (blocks.Block, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	sum, err := r.builder.Sum(data)
	if err != nil {
		return nil, err
	}

	return blocks.NewBlockWithCid(data, sum)
}

// putRecord assigns a time-ordered ID and writes the record. The mutex keeps
// IDs unique within this process; the storage lock covers other processes.
func (r *Repository) putRecord(ctx context.Context, rec *JobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.storage.Datastore()
	if d == nil {
		return storage.ErrClosed
	}

	nanos := rec.CreatedAt.UnixNano()
	for {
		rec.ID = fmt.Sprintf("%020d", nanos)
		exists, err := d.Has(ctx, jobKey(rec.ID))
		if err != nil {
			return err
		}
		if !exists {
			break
		}
		nanos++
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return d.Put(ctx, jobKey(rec.ID), data)
}

// Jobs lists every recorded job, oldest first.
func (r *Repository) Jobs(ctx context.Context) ([]*JobRecord, error) {
	d := r.storage.Datastore()
	if d == nil {
		return nil, storage.ErrClosed
	}

	res, err := d.Query(ctx, query.Query{
		Prefix: jobsPrefix,
		Orders: []query.Order{query.OrderByKey{}},
	})
	if err != nil {
		return nil, err
	}
	defer res.Close()

	entries, err := res.Rest()
	if err != nil {
		return nil, err
	}

	jobs := make([]*JobRecord, 0, len(entries))
	for _, e := range entries {
		rec := &JobRecord{}
		if err := json.Unmarshal(e.Value, rec); err != nil {
			return nil, fmt.Errorf("decode job %s: %w", e.Key, err)
		}
		jobs = append(jobs, rec)
	}

	return jobs, nil
}

// Job returns a single record by ID.
func (r *Repository) Job(ctx context.Context, id string) (*JobRecord, error) {
	d := r.storage.Datastore()
	if d == nil {
		return nil, storage.ErrClosed
	}

	data, err := d.Get(ctx, jobKey(id))
	if errors.Is(err, ds.ErrNotFound) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	rec := &JobRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return rec, nil
}

// LatestFor returns the most recent job written into destination.
func (r *Repository) LatestFor(ctx context.Context, destination string) (*JobRecord, error) {
	abs, err := filepath.Abs(destination)
	if err != nil {
		return nil, err
	}

	jobs, err := r.Jobs(ctx)
	if err != nil {
		return nil, err
	}

	for i := len(jobs) - 1; i >= 0; i-- {
		if filepath.Clean(jobs[i].Destination) == abs {
			return jobs[i], nil
		}
	}
	return nil, fmt.Errorf("no job for %s: %w", destination, ErrNotFound)
}

// Manifest loads the manifest block identified by manifestCID.
func (r *Repository) Manifest(ctx context.Context, manifestCID string) (*ArchiveManifest, error) {
	c, err := cid.Decode(manifestCID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidCID, manifestCID, err)
	}

	blk, err := r.blockStore.Get(ctx, c)
	if ipld.IsNotFound(err) {
		return nil, fmt.Errorf("manifest %s: %w", manifestCID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	m := &ArchiveManifest{}
	if err := json.Unmarshal(blk.RawData(), m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", manifestCID, err)
	}
	return m, nil
}

// HasManifest reports whether the manifest block is present.
func (r *Repository) HasManifest(ctx context.Context, manifestCID string) (bool, error) {
	c, err := cid.Decode(manifestCID)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrInvalidCID, manifestCID, err)
	}
	return r.blockStore.Has(ctx, c)
}

// VerifyArchive recomputes the content CID of an archive on disk and compares
// it with the one recorded for it.
func VerifyArchive(ref ArchiveRef) error {
	f, err := os.Open(ref.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	got, err := contentCID(f)
	if err != nil {
		return err
	}
	if got != ref.ContentCID {
		return fmt.Errorf("archive %s changed: recorded %s, now %s", ref.Path, ref.ContentCID, got)
	}
	return nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func jobKey(id string) ds.Key {
	return ds.NewKey(jobsPrefix).ChildString(id)
}
