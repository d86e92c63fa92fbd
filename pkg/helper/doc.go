// Package helper 提供归档文件命名与文件名清理功能
//
// 分卷归档的文件名由本包统一生成，保证两个命名空间永不冲突：
//
//   - 顺序归档: archive001.zip, archive002.zip, ...（三位零填充，从 001 开始）
//   - 超大文件独立归档: large_file_<basename>.zip
//
// 独立归档的 basename 来自源文件名，因此先经过 CleanFilename 清理：
//
//   - 移除路径分隔符、控制字符以及 Windows 不允许的字符（替换为 "_"）
//   - 合并连续空白，修剪末尾的空格和点
//   - 处理 Windows 保留设备名（CON, PRN, AUX, NUL, COM1-9, LPT1-9）
//   - 截断过长的文件名（255 字节）
//
// 归档内条目名使用 EntryName 生成，无论宿主系统如何，分隔符始终为 "/"。
//
// 基本用法：
//
//	helper.ArchiveName(3)                    // "archive003.zip"
//	helper.IsolatedArchiveName("db.sqlite")  // "large_file_db.sqlite.zip"
//	helper.EntryName(`logs\app.log`)         // "logs/app.log"（Windows）
package helper
