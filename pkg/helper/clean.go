package helper

import (
	"strings"
	"unicode"
)

// CleanFilename 清理单个文件名，使其可以安全地作为归档文件名的一部分。
//
// 空字符串或清理后为空的名称返回 DefaultFilename。
func CleanFilename(filename string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(invalidChars, r):
			return '_'
		case r == 0x00A0 || r == 0x3000 || (r >= 0x2000 && r <= 0x200A):
			return ' '
		case r == 0x200B || r == 0x200C || r == 0x200D || r == 0x2060 || r == 0xFEFF:
			return -1
		case r == 0x200E || r == 0x200F || (r >= 0x202A && r <= 0x202E):
			return -1
		case r == '\t':
			return -1
		case !unicode.IsPrint(r):
			return -1
		}
		return r
	}, filename)

	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.TrimRight(cleaned, ". ")
	cleaned = HandleReservedNames(cleaned)
	cleaned = TruncateFilename(cleaned, MaxFilenameLength)

	if cleaned == "" {
		return DefaultFilename
	}

	return cleaned
}

// HandleReservedNames 为 Windows 保留设备名添加 "_file" 后缀（不区分大小写）。
// 例如: "CON.txt" -> "CON_file.txt", "con" -> "con_file"
func HandleReservedNames(filename string) string {
	if filename == "" {
		return ""
	}

	base, ext := splitNameAndExt(filename)
	if reservedNameSet[strings.ToLower(base)] {
		return base + ReservedSuffix + ext
	}

	return filename
}

// TruncateFilename 将文件名截断到 maxLength 字节，尽量保留扩展名，
// 且不会把多字节字符截成两半。
func TruncateFilename(filename string, maxLength int) string {
	if len(filename) <= maxLength {
		return filename
	}

	base, ext := splitNameAndExt(filename)
	if len(ext) >= maxLength {
		return truncateUTF8(filename, maxLength)
	}

	return truncateUTF8(base, maxLength-len(ext)) + ext
}

// splitNameAndExt 分离文件名和扩展名
//
//	"file.txt" -> ("file", ".txt")
//	"file" -> ("file", "")
//	".gitignore" -> (".gitignore", "")
func splitNameAndExt(filename string) (string, string) {
	dotIndex := strings.LastIndex(filename, ".")
	if dotIndex <= 0 || dotIndex >= len(filename)-1 {
		return filename, ""
	}

	return filename[:dotIndex], filename[dotIndex:]
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}

	for n > 0 && !isRuneStart(s[n]) {
		n--
	}

	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
