// Package index 维护“名称变体 -> 演员 ID”的持久映射（actors-index.json）。
//
// 约束：
// - 只做精确匹配（小写 + trim），不做模糊匹配、不做姓名倒序
// - 读取/解析失败一律退化为空索引（记录日志），由 Rebuild 恢复
// - 一批新增只落盘一次
package index

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/infra/fsx"
)

const (
	// FileName 是当前索引文件名。
	FileName = "actors-index.json"
	// LegacyFileName 是旧版本使用的文件名；首次读取时若新文件不存在会被改名一次。
	LegacyFileName = "actors_index.json"
)

// Entity 是一次注册的输入：一个 canonical ID 及其全部名称变体。
type Entity struct {
	ID    string
	Names []string
}

// Conflict 描述一次“同一个 key 被另一个 ID 覆盖”。
// 冲突策略是后写覆盖（last write wins）；冲突会被返回并记录日志，而不是静默发生。
type Conflict struct {
	Key   string
	OldID string
	NewID string
}

// RebuildStats 是 Rebuild 的统计结果。
type RebuildStats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Unique    int `json:"unique"`
}

// Walker 由权威存储（演员 NFO 目录）实现：逐个回调实体；单个文件失败时 err 非空。
type Walker interface {
	WalkEntities(fn func(e Entity, err error)) error
}

// Index 是名称索引。零值不可用，请使用 New。
type Index struct {
	dir string
	log *zap.Logger

	mu     sync.Mutex
	loaded bool
	m      map[string]string
}

func New(dir string, log *zap.Logger) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	return &Index{
		dir: filepath.Clean(dir),
		log: log.Named("index"),
	}
}

// Key 把名称规范化为索引 key（小写 + trim）。
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Path 返回索引文件的绝对路径。
func (ix *Index) Path() string { return filepath.Join(ix.dir, FileName) }

// Resolve 精确查找名称对应的 ID。
func (ix *Index) Resolve(name string) (string, bool) {
	k := Key(name)
	if k == "" {
		return "", false
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.loadLocked()
	id, ok := ix.m[k]
	return id, ok
}

// Len 返回当前 key 数量（会触发首次加载）。
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.loadLocked()
	return len(ix.m)
}

// Register 为每个实体写入其全部名称变体，最后只落盘一次。
func (ix *Index) Register(entities ...Entity) ([]Conflict, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.loadLocked()

	var conflicts []Conflict
	changed := false
	for _, e := range entities {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			continue
		}
		for _, n := range e.Names {
			k := Key(n)
			if k == "" {
				continue
			}
			old, ok := ix.m[k]
			if ok && old == id {
				continue
			}
			if ok {
				conflicts = append(conflicts, Conflict{Key: k, OldID: old, NewID: id})
				ix.log.Warn("name index conflict, overwriting",
					zap.String("key", k), zap.String("old_id", old), zap.String("new_id", id))
			}
			ix.m[k] = id
			changed = true
		}
	}
	if !changed {
		return conflicts, nil
	}
	return conflicts, ix.saveLocked()
}

// Remove 删除所有指向 id 的条目，返回删除数量。
func (ix *Index) Remove(id string) (int, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return 0, nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.loadLocked()

	n := 0
	for k, v := range ix.m {
		if v == id {
			delete(ix.m, k)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, ix.saveLocked()
}

// Rebuild 丢弃现有索引，从权威存储完整重算。
func (ix *Index) Rebuild(w Walker) (RebuildStats, error) {
	if w == nil {
		return RebuildStats{}, errors.New("index: walker 不能为空")
	}

	next := make(map[string]string, 256)
	ids := make(map[string]struct{}, 128)
	var st RebuildStats

	err := w.WalkEntities(func(e Entity, err error) {
		if err != nil {
			st.Failed++
			ix.log.Warn("rebuild: skip unreadable entity", zap.String("id", e.ID), zap.Error(err))
			return
		}
		st.Processed++
		id := strings.TrimSpace(e.ID)
		if id == "" {
			return
		}
		ids[id] = struct{}{}
		for _, n := range e.Names {
			if k := Key(n); k != "" {
				next[k] = id
			}
		}
	})
	if err != nil {
		return st, err
	}
	st.Unique = len(ids)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.m = next
	ix.loaded = true
	ix.log.Info("name index rebuilt",
		zap.Int("processed", st.Processed), zap.Int("failed", st.Failed),
		zap.Int("unique", st.Unique), zap.Int("keys", len(next)))
	return st, ix.saveLocked()
}

// Snapshot 返回当前映射的拷贝（调试/测试用）。
func (ix *Index) Snapshot() map[string]string {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.loadLocked()
	out := make(map[string]string, len(ix.m))
	for k, v := range ix.m {
		out[k] = v
	}
	return out
}

func (ix *Index) loadLocked() {
	if ix.loaded {
		return
	}
	ix.loaded = true
	ix.m = map[string]string{}

	cur := filepath.Join(ix.dir, FileName)
	ix.migrateLegacy(cur)

	b, err := os.ReadFile(cur)
	if err != nil {
		if !os.IsNotExist(err) {
			ix.log.Warn("read name index failed, starting empty", zap.String("path", cur), zap.Error(err))
		}
		return
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		ix.log.Warn("parse name index failed, starting empty", zap.String("path", cur), zap.Error(err))
		return
	}
	for k, v := range m {
		if k = Key(k); k != "" && strings.TrimSpace(v) != "" {
			ix.m[k] = v
		}
	}
}

// migrateLegacy 只在“当前文件不存在且旧文件存在”时改名一次。
func (ix *Index) migrateLegacy(cur string) {
	if _, err := os.Stat(cur); err == nil || !os.IsNotExist(err) {
		return
	}
	legacy := filepath.Join(ix.dir, LegacyFileName)
	if _, err := os.Stat(legacy); err != nil {
		return
	}
	if err := fsx.Rename(legacy, cur); err != nil {
		ix.log.Warn("migrate legacy name index failed", zap.String("from", legacy), zap.Error(err))
		return
	}
	ix.log.Info("migrated legacy name index", zap.String("from", legacy), zap.String("to", cur))
}

func (ix *Index) saveLocked() error {
	// encoding/json 对 map 按 key 排序输出，保证文件内容确定。
	if err := fsx.WriteJSON(ix.dir, FileName, ix.m, fsx.Replace); err != nil {
		ix.log.Warn("write name index failed", zap.String("path", ix.Path()), zap.Error(err))
		return err
	}
	return nil
}
