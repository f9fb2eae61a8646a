package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/index"
	"github.com/John-Robertt/avmeta/internal/infra/fsx"
	"github.com/John-Robertt/avmeta/internal/merge"
	"github.com/John-Robertt/avmeta/internal/nfo"
	"github.com/John-Robertt/avmeta/internal/slug"
)

const actorExt = ".nfo"

// ActorStore 持久化演员记录，并维护名称索引。
//
// 写入顺序固定为“先记录、后索引”：记录是权威数据，索引损坏/落后时可由 Rebuild 从记录重算。
type ActorStore struct {
	dir   string
	index *index.Index
	log   *zap.Logger
	now   func() time.Time
}

// NewActorStore 在 {cacheDir}/actors 下打开演员存储（目录不存在时首次写入会自动创建）。
func NewActorStore(cacheDir string, log *zap.Logger) *ActorStore {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Join(filepath.Clean(cacheDir), actorsDir)
	return &ActorStore{
		dir:   dir,
		index: index.New(dir, log),
		log:   log.Named("actors"),
		now:   time.Now,
	}
}

func (s *ActorStore) Dir() string          { return s.dir }
func (s *ActorStore) Index() *index.Index { return s.index }

// Path 返回某个 id 的 NFO 路径。
func (s *ActorStore) Path(id string) (string, error) {
	k, ok := safeKey(id)
	if !ok {
		return "", fmt.Errorf("%w: actor id %q", ErrInvalidKey, id)
	}
	return filepath.Join(s.dir, k+actorExt), nil
}

// Exists 判断 id 对应的记录文件是否存在（不解析内容）。
func (s *ActorStore) Exists(id string) bool {
	path, err := s.Path(id)
	if err != nil {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Load 读取演员记录；文件不存在、读取或解析失败都返回 ok=false（失败会记录日志）。
func (s *ActorStore) Load(id string) (domain.ActorRecord, bool) {
	path, err := s.Path(id)
	if err != nil {
		return domain.ActorRecord{}, false
	}
	b, ok, err := fsx.ReadFileIfExists(path)
	if err != nil {
		s.log.Warn("read actor record failed, treating as absent", zap.String("path", path), zap.Error(err))
		return domain.ActorRecord{}, false
	}
	if !ok {
		return domain.ActorRecord{}, false
	}
	rec, err := nfo.DecodeActor(b)
	if err != nil {
		s.log.Warn("parse actor record failed, treating as absent", zap.String("path", path), zap.Error(err))
		return domain.ActorRecord{}, false
	}
	rec.ID = strings.TrimSpace(id)
	return rec, true
}

// Save 写入演员记录并返回实际落盘的版本。
//
// 规则：
//   - ID 为空时：先按名称变体查索引复用已有 ID，查不到再由 Name 推导 slug
//   - 每次写入刷新 LastUpdate，并重新解析 Thumb
//   - 记录写成功后注册名称变体；索引写失败只记录日志（记录已是权威数据）
func (s *ActorStore) Save(rec domain.ActorRecord) (domain.ActorRecord, error) {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return rec, fmt.Errorf("store: actor name 不能为空")
	}

	rec.ID = strings.TrimSpace(rec.ID)
	if rec.ID == "" {
		rec.ID = s.assignID(rec)
	}
	path, err := s.Path(rec.ID)
	if err != nil {
		return rec, err
	}

	rec.LastUpdate = s.now().UTC().Truncate(time.Second)
	rec.Thumb = merge.ResolveThumb(rec)

	b, err := nfo.EncodeActor(rec)
	if err != nil {
		return rec, err
	}
	if err := fsx.WriteAtomic(s.dir, filepath.Base(path), b, fsx.Replace); err != nil {
		return rec, err
	}

	if _, err := s.index.Register(index.Entity{ID: rec.ID, Names: rec.NameVariants()}); err != nil {
		s.log.Warn("register actor names failed, index can be rebuilt", zap.String("id", rec.ID), zap.Error(err))
	}
	return rec, nil
}

func (s *ActorStore) assignID(rec domain.ActorRecord) string {
	for _, n := range rec.NameVariants() {
		if id, ok := s.index.Resolve(n); ok {
			return id
		}
	}
	return slug.ID(rec.Name)
}

// IsComplete 等价于 merge.ActorComplete。
func (s *ActorStore) IsComplete(rec domain.ActorRecord) bool { return merge.ActorComplete(rec) }

// Delete 删除演员记录及其所有索引条目（显式用户操作）。
func (s *ActorStore) Delete(id string) error {
	path, err := s.Path(id)
	if err != nil {
		return err
	}
	removed, err := fsx.RemoveIfExists(path)
	if err != nil {
		return err
	}
	n, err := s.index.Remove(strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !removed && n == 0 {
		return fmt.Errorf("%w: actor %q", ErrNotFound, id)
	}
	s.log.Info("actor deleted", zap.String("id", id), zap.Int("index_keys", n))
	return nil
}

// List 返回所有演员 ID（按字典序）。目录不存在时返回空。
func (s *ActorStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), actorExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, filepath.Ext(name)))
	}
	sort.Strings(ids)
	return ids, nil
}

// WalkEntities 遍历全部演员记录（实现 index.Walker）；单个文件失败以 err 回调，不中断遍历。
func (s *ActorStore) WalkEntities(fn func(e index.Entity, err error)) error {
	ids, err := s.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		path := filepath.Join(s.dir, id+actorExt)
		b, err := os.ReadFile(path)
		if err != nil {
			fn(index.Entity{ID: id}, err)
			continue
		}
		rec, err := nfo.DecodeActor(b)
		if err != nil {
			fn(index.Entity{ID: id}, err)
			continue
		}
		fn(index.Entity{ID: id, Names: rec.NameVariants()}, nil)
	}
	return nil
}

// EnsureIndex 在索引为空但存在演员记录时执行一次全量重建。
// 返回值 rebuilt 表示是否真的触发了重建。
func (s *ActorStore) EnsureIndex() (rebuilt bool, err error) {
	if s.index.Len() > 0 {
		return false, nil
	}
	ids, err := s.List()
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}
	s.log.Info("name index empty but actor records exist, rebuilding", zap.Int("records", len(ids)))
	if _, err := s.index.Rebuild(s); err != nil {
		return true, err
	}
	return true, nil
}
