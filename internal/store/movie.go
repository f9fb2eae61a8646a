package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/infra/fsx"
	"github.com/John-Robertt/avmeta/internal/merge"
)

const movieExt = ".json"

// ManualSource 是用户 patch 写入字段时记在 provenance 里的来源名。
const ManualSource = "manual"

// MovieStore 持久化影片记录信封（{code}.json）。
type MovieStore struct {
	dir string
	log *zap.Logger
	now func() time.Time
}

func NewMovieStore(cacheDir string, log *zap.Logger) *MovieStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MovieStore{
		dir: filepath.Join(filepath.Clean(cacheDir), moviesDir),
		log: log.Named("movies"),
		now: time.Now,
	}
}

func (s *MovieStore) Dir() string { return s.dir }

// Path 返回 code 对应的缓存文件路径。
func (s *MovieStore) Path(code domain.Code) (string, error) {
	k, ok := safeKey(string(code))
	if !ok {
		return "", fmt.Errorf("%w: code %q", ErrInvalidKey, code)
	}
	return filepath.Join(s.dir, k+movieExt), nil
}

// Exists 判断 code 是否已有缓存文件（不解析内容）。
func (s *MovieStore) Exists(code domain.Code) bool {
	path, err := s.Path(code)
	if err != nil {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// Load 读取影片信封；不存在或读取/解析失败时 ok=false（失败会记录日志）。
func (s *MovieStore) Load(code domain.Code) (domain.MovieEnvelope, bool) {
	path, err := s.Path(code)
	if err != nil {
		return domain.MovieEnvelope{}, false
	}
	b, ok, err := fsx.ReadFileIfExists(path)
	if err != nil {
		s.log.Warn("read movie record failed, treating as absent", zap.String("path", path), zap.Error(err))
		return domain.MovieEnvelope{}, false
	}
	if !ok {
		return domain.MovieEnvelope{}, false
	}
	var env domain.MovieEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		s.log.Warn("parse movie record failed, treating as absent", zap.String("path", path), zap.Error(err))
		return domain.MovieEnvelope{}, false
	}
	if env.Data.Code == "" {
		env.Data.Code = code
	}
	return env, true
}

// Save 整体替换写入信封。ScrapedAt 为零值时补当前时间；文件名由 Data.Code 决定。
func (s *MovieStore) Save(env domain.MovieEnvelope) error {
	path, err := s.Path(env.Data.Code)
	if err != nil {
		return err
	}
	if env.ScrapedAt.IsZero() {
		env.ScrapedAt = s.now()
	}
	env.ScrapedAt = env.ScrapedAt.UTC().Truncate(time.Second)
	if env.Sources == nil {
		env.Sources = []string{}
	}
	if env.VideoFile == "" {
		env.VideoFile = env.Data.Provenance.VideoFile
	}

	return fsx.WriteJSON(s.dir, filepath.Base(path), env, fsx.Replace)
}

// List 返回全部已缓存的 code（按字典序）。
func (s *MovieStore) List() ([]domain.Code, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]domain.Code, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), movieExt) {
			continue
		}
		if c, ok := domain.ParseCode(strings.TrimSuffix(name, filepath.Ext(name))); ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Patch 把一个 JSON 对象按顶层字段合并到 data 上（用户显式编辑）。
//
// 约束：
// - patch 必须是 JSON 对象；值为 null 表示清空该字段
// - code 不允许被修改（出现且不同则报错）
// - 被修改的可合并字段在 provenance.fieldSources 中记为 "manual"
func (s *MovieStore) Patch(code domain.Code, patch []byte) (domain.MovieEnvelope, error) {
	env, ok := s.Load(code)
	if !ok {
		return domain.MovieEnvelope{}, fmt.Errorf("%w: movie %q", ErrNotFound, code)
	}

	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil {
		return env, fmt.Errorf("patch 必须是 JSON 对象：%w", err)
	}
	if raw, ok := changes["code"]; ok {
		var c string
		if err := json.Unmarshal(raw, &c); err != nil || !domain.SameCode(domain.Code(c), env.Data.Code) {
			return env, fmt.Errorf("patch 不允许修改 code（%s）", strings.TrimSpace(string(raw)))
		}
		delete(changes, "code")
	}
	delete(changes, "provenance")

	cur, err := json.Marshal(env.Data)
	if err != nil {
		return env, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(cur, &doc); err != nil {
		return env, err
	}
	for k, v := range changes {
		if string(v) == "null" {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	next, err := json.Marshal(doc)
	if err != nil {
		return env, err
	}

	var data domain.MovieRecord
	if err := json.Unmarshal(next, &data); err != nil {
		return env, fmt.Errorf("patch 字段类型不匹配：%w", err)
	}
	data.Code = env.Data.Code
	data.Provenance = env.Data.Provenance
	for k := range changes {
		if !merge.IsMovieField(k) {
			continue
		}
		if data.Provenance.FieldSources == nil {
			data.Provenance.FieldSources = map[string]string{}
		}
		data.Provenance.FieldSources[k] = ManualSource
	}

	env.Data = data
	if err := s.Save(env); err != nil {
		return env, err
	}
	s.log.Info("movie patched", zap.String("code", string(code)), zap.Int("fields", len(changes)))
	return env, nil
}

// Delete 删除影片缓存文件；返回是否真的删除了文件。
func (s *MovieStore) Delete(code domain.Code) (bool, error) {
	path, err := s.Path(code)
	if err != nil {
		return false, err
	}
	return fsx.RemoveIfExists(path)
}
