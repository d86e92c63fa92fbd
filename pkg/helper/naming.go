package helper

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ArchiveName 返回第 index 个顺序归档的文件名（index 从 1 开始）。
func ArchiveName(index int) string {
	return fmt.Sprintf("%s%0*d%s", sequencePrefix, sequenceWidth, index, ArchiveExt)
}

// IsolatedArchiveName 返回超大文件独立归档的文件名。
// base 可以是完整路径，只取最后一段。
func IsolatedArchiveName(base string) string {
	return isolatedPrefix + CleanFilename(filepath.Base(base)) + ArchiveExt
}

// DedupName 在 name 的扩展名之前插入 "_n" 后缀，n >= 2。
//
//	DedupName("large_file_a.bin.zip", 2) -> "large_file_a.bin_2.zip"
func DedupName(name string, n int) string {
	if n < 2 {
		return name
	}

	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// HasArchiveExt 判断 name 是否以归档扩展名结尾（不区分大小写）。
func HasArchiveExt(name string) bool {
	return len(name) > len(ArchiveExt) && strings.EqualFold(filepath.Ext(name), ArchiveExt)
}

// IsArchiveName 判断 name 是否落在本包生成的归档命名空间内（不区分大小写）：
// archive<至少三位数字>.zip 或 large_file_<任意>.zip。
func IsArchiveName(name string) bool {
	if !HasArchiveExt(name) {
		return false
	}

	stem := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
	if strings.HasPrefix(stem, isolatedPrefix) {
		return len(stem) > len(isolatedPrefix)
	}

	digits := strings.TrimPrefix(stem, sequencePrefix)
	if digits == stem || len(digits) < sequenceWidth {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// EntryName 将宿主系统的相对路径转换为归档条目名：分隔符统一为 "/"，
// 去掉开头的 "./" 与 "/"。
func EntryName(rel string) string {
	name := filepath.ToSlash(filepath.Clean(rel))
	name = strings.TrimPrefix(name, "./")
	return strings.TrimLeft(name, "/")
}
