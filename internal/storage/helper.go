package storage

import (
	"os"
	"path/filepath"
)

const writableProbe = "._check_writable"

// Writable 确保目录存在并且可写：必要时创建目录，再写入并删除一个探测文件。
func Writable(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &StorageError{Op: "create directory", Path: path, Err: err}
	}

	probe := filepath.Join(path, writableProbe)
	f, err := os.Create(probe)
	if err != nil {
		return &StorageError{Op: "probe", Path: path, Err: err}
	}
	defer os.Remove(probe)

	if err := f.Sync(); err != nil {
		f.Close()
		return &StorageError{Op: "probe", Path: path, Err: err}
	}

	return f.Close()
}

// SpecPath 返回目录根下规范文件的路径。
func SpecPath(root string) string {
	return filepath.Join(root, SpecFile)
}

// fileExists 只把非空文件视为存在，空的规范文件会被重写。
func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}

// resolvePath 把相对路径挂到 root 下，绝对路径原样返回。
func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
