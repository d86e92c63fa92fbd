package helper

const (
	// ArchiveExt 是所有归档文件的扩展名
	ArchiveExt = ".zip"

	// MaxFilenameLength 是文件名最大字节数
	MaxFilenameLength = 255

	// DefaultFilename 是清理后为空时使用的文件名
	DefaultFilename = "unnamed_file"

	// ReservedSuffix 是保留名后缀
	ReservedSuffix = "_file"

	// sequencePrefix 是顺序归档的文件名前缀
	sequencePrefix = "archive"

	// isolatedPrefix 是超大文件独立归档的文件名前缀
	isolatedPrefix = "large_file_"

	// sequenceWidth 是顺序号的零填充宽度
	sequenceWidth = 3
)

// Windows 无效文件名字符
const invalidChars = `<>:"/\|?*` + "\x00"

// 保留名集合
var reservedNameSet = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true, "com5": true,
	"com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true, "lpt5": true,
	"lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}
