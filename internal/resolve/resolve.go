// Package resolve 按固定顺序尝试把一个演员名解析为已有记录的 ID。
//
// 策略顺序：索引精确匹配 -> 名称 slug -> 倒序名称 slug。
// 只做精确匹配；近似名称的去重不在这里处理。
package resolve

import (
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/slug"
)

// Lookup 是名称索引的只读视图。
type Lookup interface {
	Resolve(name string) (string, bool)
}

// Exister 判断某个 ID 的记录是否已落盘。
type Exister interface {
	Exists(id string) bool
}

// Strategy 是一种解析方式。
type Strategy interface {
	Name() string
	Resolve(name string) (string, bool)
}

type exactIndex struct{ ix Lookup }

func (exactIndex) Name() string { return "index" }
func (s exactIndex) Resolve(name string) (string, bool) {
	return s.ix.Resolve(name)
}

type slugID struct{ ex Exister }

func (slugID) Name() string { return "slug" }
func (s slugID) Resolve(name string) (string, bool) {
	id := slug.ID(name)
	if id == "" || !s.ex.Exists(id) {
		return "", false
	}
	return id, true
}

type invertedSlug struct{ ex Exister }

func (invertedSlug) Name() string { return "inverted_slug" }
func (s invertedSlug) Resolve(name string) (string, bool) {
	inv := slug.Invert(name)
	if inv == "" {
		return "", false
	}
	id := slug.ID(inv)
	if id == "" || !s.ex.Exists(id) {
		return "", false
	}
	return id, true
}

// Resolver 依次尝试各策略，第一个命中者胜出。
type Resolver struct {
	strategies []Strategy
	log        *zap.Logger
}

// New 构造默认策略链。
func New(ix Lookup, ex Exister, log *zap.Logger) *Resolver {
	return NewWith(log, exactIndex{ix: ix}, slugID{ex: ex}, invertedSlug{ex: ex})
}

// NewWith 使用自定义策略链（测试与扩展用）。
func NewWith(log *zap.Logger, strategies ...Strategy) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{strategies: strategies, log: log.Named("resolve")}
}

// Resolve 返回命中的 ID 与策略名。
func (r *Resolver) Resolve(name string) (id, via string, ok bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	for _, s := range r.strategies {
		if id, ok := s.Resolve(name); ok {
			r.log.Debug("resolved", zap.String("name", name), zap.String("id", id), zap.String("via", s.Name()))
			return id, s.Name(), true
		}
	}
	return "", "", false
}

// QueryVariants 返回向来源查询时依次尝试的名称：原名，然后是倒序名（若不同）。
func QueryVariants(name string) []string {
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return nil
	}
	out := []string{name}
	if inv := slug.Invert(name); inv != "" && !strings.EqualFold(inv, name) {
		out = append(out, inv)
	}
	return out
}
