package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	ds "github.com/ipfs/go-datastore"
	measure "github.com/ipfs/go-ds-measure"
	"github.com/mitchellh/go-homedir"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// LockFile 是目录锁文件名，文件内容为持有者的 pid。
const LockFile = "catalog.lock"

// ErrClosed 在 Storage 关闭后访问 datastore 时返回。
var ErrClosed = errors.New("storage: closed")

// Storage 是一个已打开、已加锁的作业目录。
type Storage struct {
	mu     sync.Mutex
	closed bool
	path   string
	lock   *lockedfile.File
	ds     Datastore
}

// Open 打开（必要时创建）path 处的目录。path 可以以 "~" 开头。
//
// 若另一个进程持有同一目录，Open 会阻塞直到锁被释放。
// 已存在的规范文件必须与当前默认规范一致。
func Open(path string) (*Storage, error) {
	return OpenWithSpec(path, CatalogDiskSpec())
}

// OpenWithSpec 与 Open 相同，但使用调用方提供的规范。
func OpenWithSpec(path string, spec DiskSpec) (*Storage, error) {
	root, err := expand(path)
	if err != nil {
		return nil, err
	}

	backend, err := ParseBackend(spec)
	if err != nil {
		return nil, err
	}

	if err := Writable(root); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(root, LockFile)
	lock, err := lockedfile.OpenFile(lockPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &LockError{Path: lockPath, Err: err}
	}

	keepLock := false
	defer func() {
		if !keepLock {
			_ = lock.Close()
		}
	}()

	if err := writePid(lock); err != nil {
		return nil, &LockError{Path: lockPath, Err: err}
	}

	if err := ensureSpec(root, backend.DiskSpec()); err != nil {
		return nil, err
	}

	d, err := backend.Create(root)
	if err != nil {
		return nil, &StorageError{Op: "open datastore", Path: root, Err: err}
	}

	keepLock = true
	return &Storage{
		path: root,
		lock: lock,
		ds:   measure.New("partition.catalog", d),
	}, nil
}

// Path 返回展开后的目录根路径。
func (s *Storage) Path() string {
	return s.path
}

// Datastore 返回底层 datastore；关闭后返回 nil。
func (s *Storage) Datastore() Datastore {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	return s.ds
}

// Usage 返回 datastore 报告的磁盘占用（字节）。
func (s *Storage) Usage(ctx context.Context) (uint64, error) {
	d := s.Datastore()
	if d == nil {
		return 0, ErrClosed
	}
	return ds.DiskUsage(ctx, d)
}

// Close 关闭 datastore 并释放锁，可重复调用。
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closeLocked()
}

// Destroy 关闭目录并删除整个目录树。
func (s *Storage) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.closeLocked(); err != nil {
		return err
	}

	if err := os.RemoveAll(s.path); err != nil {
		return &StorageError{Op: "remove", Path: s.path, Err: err}
	}
	return nil
}

func (s *Storage) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.ds.Close(); err != nil {
		errs = append(errs, &StorageError{Op: "close datastore", Path: s.path, Err: err})
	}

	if s.lock != nil {
		lockPath := s.lock.Name()
		if err := s.lock.Close(); err != nil {
			errs = append(errs, &LockError{Path: lockPath, Err: err})
		}
		if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, &LockError{Path: lockPath, Err: err})
		}
	}

	return errors.Join(errs...)
}

// ensureSpec 在规范文件缺失时写入它，否则校验磁盘上的规范与 want 一致。
func ensureSpec(root string, want DiskSpec) error {
	specPath := SpecPath(root)

	if !fileExists(specPath) {
		if err := os.WriteFile(specPath, want.Bytes(), 0o600); err != nil {
			return &StorageError{Op: "write spec", Path: specPath, Err: err}
		}
		return nil
	}

	b, err := os.ReadFile(specPath)
	if err != nil {
		return &StorageError{Op: "read spec", Path: specPath, Err: err}
	}

	if got := strings.TrimSpace(string(b)); got != want.String() {
		return &ConfigError{
			Field: SpecFile,
			Value: got,
			Err:   fmt.Errorf("on-disk spec does not match %s", want.String()),
		}
	}

	return nil
}

func writePid(f *lockedfile.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())), 0)
	return err
}

func expand(path string) (string, error) {
	if path == "" {
		return "", &StorageError{Op: "open", Err: errors.New("no path provided")}
	}

	expanded, err := homedir.Expand(filepath.Clean(path))
	if err != nil {
		return "", &StorageError{Op: "expand", Path: path, Err: err}
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", &StorageError{Op: "expand", Path: path, Err: err}
	}
	return abs, nil
}
