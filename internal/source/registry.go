package source

import (
	"fmt"
	"sort"
)

// Registry 是来源的只读注册表（按小写 name 索引）；影片与演员来源分开登记。
type Registry struct {
	movies map[string]MovieSource
	actors map[string]ActorSource
}

func NewRegistry() *Registry {
	return &Registry{
		movies: map[string]MovieSource{},
		actors: map[string]ActorSource{},
	}
}

// AddMovie 登记影片来源；名称为空或重复时报错。
func (r *Registry) AddMovie(s MovieSource) error {
	if s == nil {
		return fmt.Errorf("source 不能为空")
	}
	name := normName(s.Name())
	if name == "" {
		return fmt.Errorf("source.Name 不能为空")
	}
	if _, ok := r.movies[name]; ok {
		return fmt.Errorf("重复的影片来源：%q", name)
	}
	r.movies[name] = s
	return nil
}

// AddActor 登记演员来源；名称为空或重复时报错。
func (r *Registry) AddActor(s ActorSource) error {
	if s == nil {
		return fmt.Errorf("source 不能为空")
	}
	name := normName(s.Name())
	if name == "" {
		return fmt.Errorf("source.Name 不能为空")
	}
	if _, ok := r.actors[name]; ok {
		return fmt.Errorf("重复的演员来源：%q", name)
	}
	r.actors[name] = s
	return nil
}

func (r *Registry) Movie(name string) (MovieSource, bool) {
	s, ok := r.movies[normName(name)]
	return s, ok
}

func (r *Registry) Actor(name string) (ActorSource, bool) {
	s, ok := r.actors[normName(name)]
	return s, ok
}

// MovieChain 按配置顺序解析影片来源链；任何未登记的名称都是配置错误。
func (r *Registry) MovieChain(names []string) ([]MovieSource, error) {
	out := make([]MovieSource, 0, len(names))
	for _, n := range names {
		s, ok := r.Movie(n)
		if !ok {
			return nil, fmt.Errorf("未知影片来源：%q（可用：%v）", n, r.MovieNames())
		}
		out = append(out, s)
	}
	return out, nil
}

// ActorChain 按配置顺序解析演员来源链。
func (r *Registry) ActorChain(names []string) ([]ActorSource, error) {
	out := make([]ActorSource, 0, len(names))
	for _, n := range names {
		s, ok := r.Actor(n)
		if !ok {
			return nil, fmt.Errorf("未知演员来源：%q（可用：%v）", n, r.ActorNames())
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *Registry) MovieNames() []string { return sortedKeys(r.movies) }
func (r *Registry) ActorNames() []string { return sortedKeys(r.actors) }

func sortedKeys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
