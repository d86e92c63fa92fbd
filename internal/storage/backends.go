package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/mount"
	flatfs "github.com/ipfs/go-ds-flatfs"
	levelds "github.com/ipfs/go-ds-leveldb"
	measure "github.com/ipfs/go-ds-measure"
	ldbopts "github.com/syndtr/goleveldb/leveldb/opt"
)

// Datastore 是目录使用的 datastore，必须支持批量写入。
type Datastore interface {
	ds.Batching
}

// Backend 描述一种 datastore 后端：既能还原为规范，也能在给定根目录下创建实例。
type Backend interface {
	DiskSpec() DiskSpec
	Create(root string) (Datastore, error)
}

// BackendFactory 从规范片段构造 Backend。
type BackendFactory func(params map[string]interface{}) (Backend, error)

// lookupBackend 返回 typ 对应的工厂；未知类型返回 nil。
func lookupBackend(typ string) BackendFactory {
	switch strings.ToLower(typ) {
	case "mount":
		return newMountBackend
	case "measure":
		return newMeasureBackend
	case "flatfs":
		return newFlatfsBackend
	case "levelds":
		return newLeveldbBackend
	default:
		return nil
	}
}

// ParseBackend 解析规范片段，递归处理 mount 与 measure 的子节点。
func ParseBackend(params map[string]interface{}) (Backend, error) {
	typ, ok := params["type"].(string)
	if !ok {
		return nil, &ConfigError{Field: "type", Value: params["type"], Err: errors.New("missing or not a string")}
	}

	factory := lookupBackend(typ)
	if factory == nil {
		return nil, &ConfigError{Field: "type", Value: typ, Err: errors.New("unknown datastore type")}
	}

	return factory(params)
}

func stringField(params map[string]interface{}, field string) (string, error) {
	v, ok := params[field].(string)
	if !ok {
		return "", &ConfigError{Field: field, Value: params[field], Err: errors.New("missing or not a string")}
	}
	return v, nil
}

type mountBackend struct {
	mounts []mountPoint
}

type mountPoint struct {
	prefix  ds.Key
	backend Backend
}

func newMountBackend(params map[string]interface{}) (Backend, error) {
	items, ok := params["mounts"].([]interface{})
	if !ok {
		return nil, &ConfigError{Field: "mounts", Err: errors.New("missing or not an array")}
	}

	b := &mountBackend{}
	for i, item := range items {
		child, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ConfigError{Field: fmt.Sprintf("mounts[%d]", i), Err: errors.New("not an object")}
		}

		prefix, err := stringField(child, "mountpoint")
		if err != nil {
			return nil, err
		}

		backend, err := ParseBackend(child)
		if err != nil {
			return nil, err
		}

		b.mounts = append(b.mounts, mountPoint{prefix: ds.NewKey(prefix), backend: backend})
	}

	// 最长前缀优先。
	sort.Slice(b.mounts, func(i, j int) bool {
		return b.mounts[i].prefix.String() > b.mounts[j].prefix.String()
	})

	return b, nil
}

func (b *mountBackend) DiskSpec() DiskSpec {
	mounts := make([]interface{}, 0, len(b.mounts))
	for _, m := range b.mounts {
		spec := b.childSpec(m)
		spec["mountpoint"] = m.prefix.String()
		mounts = append(mounts, map[string]interface{}(spec))
	}
	return DiskSpec{"type": "mount", "mounts": mounts}
}

func (b *mountBackend) childSpec(m mountPoint) DiskSpec {
	spec := m.backend.DiskSpec()
	if spec == nil {
		spec = DiskSpec{}
	}
	return spec
}

func (b *mountBackend) Create(root string) (Datastore, error) {
	mounts := make([]mount.Mount, 0, len(b.mounts))
	for _, m := range b.mounts {
		child, err := m.backend.Create(root)
		if err != nil {
			for _, opened := range mounts {
				_ = opened.Datastore.Close()
			}
			return nil, err
		}
		mounts = append(mounts, mount.Mount{Prefix: m.prefix, Datastore: child})
	}
	return mount.New(mounts), nil
}

// measureBackend 为子后端加上 go-ds-measure 统计；它不出现在磁盘规范中。
type measureBackend struct {
	prefix string
	child  Backend
}

func newMeasureBackend(params map[string]interface{}) (Backend, error) {
	prefix, err := stringField(params, "prefix")
	if err != nil {
		return nil, err
	}

	childParams, ok := params["child"].(map[string]interface{})
	if !ok {
		return nil, &ConfigError{Field: "child", Err: errors.New("missing or not an object")}
	}

	child, err := ParseBackend(childParams)
	if err != nil {
		return nil, err
	}

	return &measureBackend{prefix: prefix, child: child}, nil
}

func (b *measureBackend) DiskSpec() DiskSpec {
	return b.child.DiskSpec()
}

func (b *measureBackend) Create(root string) (Datastore, error) {
	child, err := b.child.Create(root)
	if err != nil {
		return nil, err
	}
	return measure.New(b.prefix, child), nil
}

type flatfsBackend struct {
	path  string
	shard *flatfs.ShardIdV1
	sync  bool
}

func newFlatfsBackend(params map[string]interface{}) (Backend, error) {
	path, err := stringField(params, "path")
	if err != nil {
		return nil, err
	}

	shardFunc, err := stringField(params, "shardFunc")
	if err != nil {
		return nil, err
	}

	shard, err := flatfs.ParseShardFunc(shardFunc)
	if err != nil {
		return nil, &ConfigError{Field: "shardFunc", Value: shardFunc, Err: err}
	}

	sync, ok := params["sync"].(bool)
	if !ok {
		return nil, &ConfigError{Field: "sync", Value: params["sync"], Err: errors.New("missing or not a boolean")}
	}

	return &flatfsBackend{path: path, shard: shard, sync: sync}, nil
}

func (b *flatfsBackend) DiskSpec() DiskSpec {
	return DiskSpec{
		"type":      "flatfs",
		"path":      b.path,
		"shardFunc": b.shard.String(),
	}
}

func (b *flatfsBackend) Create(root string) (Datastore, error) {
	return flatfs.CreateOrOpen(resolvePath(root, b.path), b.shard, b.sync)
}

type leveldbBackend struct {
	path        string
	compression ldbopts.Compression
}

func newLeveldbBackend(params map[string]interface{}) (Backend, error) {
	path, err := stringField(params, "path")
	if err != nil {
		return nil, err
	}

	var compression ldbopts.Compression
	switch v := params["compression"]; v {
	case nil, "":
		compression = ldbopts.DefaultCompression
	case "none":
		compression = ldbopts.NoCompression
	case "snappy":
		compression = ldbopts.SnappyCompression
	default:
		return nil, &ConfigError{Field: "compression", Value: v, Err: errors.New("expected none or snappy")}
	}

	return &leveldbBackend{path: path, compression: compression}, nil
}

func (b *leveldbBackend) DiskSpec() DiskSpec {
	return DiskSpec{
		"type": "levelds",
		"path": b.path,
	}
}

func (b *leveldbBackend) Create(root string) (Datastore, error) {
	return levelds.NewDatastore(resolvePath(root, b.path), &levelds.Options{
		Compression: b.compression,
	})
}
