// Package storage 是作业目录（catalog）的持久化层。
//
// 目录由一份写在磁盘上的规范文件描述，默认布局为：
//   - /blocks: measure(flatfs)，保存归档清单块
//   - /:       measure(leveldb)，保存作业记录
//
// 同一目录在同一时刻只能被一个进程打开，由 lockedfile 保证。
//
//	store, err := storage.Open("~/.partition")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
package storage

import (
	"bytes"
	"encoding/json"
)

// SpecFile 是规范文件在目录中的名称。
const SpecFile = "datastore_spec"

// DiskSpec 是可序列化为 JSON 的 datastore 规范。
type DiskSpec map[string]interface{}

// CatalogDiskSpec 返回作业目录使用的默认规范。
func CatalogDiskSpec() DiskSpec {
	return DiskSpec{
		"type": "mount",
		"mounts": []interface{}{
			map[string]interface{}{
				"mountpoint": "/blocks",
				"type":       "measure",
				"prefix":     "partition.blocks",
				"child": map[string]interface{}{
					"type":      "flatfs",
					"path":      "blocks",
					"sync":      true,
					"shardFunc": "/repo/flatfs/shard/v1/next-to-last/2",
				},
			},
			map[string]interface{}{
				"mountpoint": "/",
				"type":       "measure",
				"prefix":     "partition.records",
				"child": map[string]interface{}{
					"type":        "levelds",
					"path":        "records",
					"compression": "snappy",
				},
			},
		},
	}
}

// Bytes 返回紧凑的 JSON 形式。规范只包含基本类型，序列化失败属于编程错误。
func (s DiskSpec) Bytes() []byte {
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return bytes.TrimSpace(b)
}

func (s DiskSpec) String() string {
	return string(s.Bytes())
}
