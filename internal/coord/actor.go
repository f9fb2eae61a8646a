package coord

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/merge"
	"github.com/John-Robertt/avmeta/internal/resolve"
	"github.com/John-Robertt/avmeta/internal/source"
	"github.com/John-Robertt/avmeta/internal/store"
)

// ActorResult 是一个演员名的处理结果。
type ActorResult struct {
	Item   domain.ItemResult
	Record domain.ActorRecord
}

// ActorCoordinator 按全局来源顺序补全演员记录，记录完整即停止。
type ActorCoordinator struct {
	base
	store    *store.ActorStore
	resolver *resolve.Resolver
	chain    []source.ActorSource
	priority []string
}

func NewActor(opts Options, st *store.ActorStore, chain []source.ActorSource) *ActorCoordinator {
	b := newBase(opts, "actor")
	priority := make([]string, 0, len(chain))
	for _, s := range chain {
		priority = append(priority, strings.ToLower(strings.TrimSpace(s.Name())))
	}
	return &ActorCoordinator{
		base:     b,
		store:    st,
		resolver: resolve.New(st.Index(), st, b.log),
		chain:    chain,
		priority: priority,
	}
}

// Lookup 按解析策略查找已落盘的演员记录。
func (c *ActorCoordinator) Lookup(name string) (domain.ActorRecord, bool) {
	id, _, ok := c.resolver.Resolve(name)
	if !ok {
		return domain.ActorRecord{}, false
	}
	return c.store.Load(id)
}

// Scrape 处理一个演员名。
//
// 返回的 error 只有两类：ErrAborted 与 ctx 取消；来源失败/无数据记录在 Item 里。
func (c *ActorCoordinator) Scrape(ctx context.Context, name string) (ActorResult, error) {
	name = strings.Join(strings.Fields(name), " ")
	out := ActorResult{Item: domain.ItemResult{Key: name}}
	if name == "" {
		out.Item.Status = domain.StatusFailed
		out.Item.ErrorCode = domain.ErrCodeNoData
		out.Item.ErrorMsg = "演员名为空"
		return out, nil
	}

	if _, err := c.store.EnsureIndex(); err != nil {
		c.log.Warn("ensure index failed", zap.Error(err))
	}

	var local domain.ActorRecord
	hasLocal := false
	id, via, resolved := c.resolver.Resolve(name)
	if resolved {
		local, hasLocal = c.store.Load(id)
		out.Item.ID = id
	}
	if hasLocal && merge.ActorComplete(local) {
		c.log.Debug("actor cached", zap.String("name", name), zap.String("id", id), zap.String("via", via))
		out.Item.Status = domain.StatusCached
		out.Item.Complete = true
		out.Item.Sources = local.Sources
		out.Record = local
		return out, nil
	}

	if err := c.open(); err != nil {
		out.Item.Status = domain.StatusFailed
		out.Item.ErrorCode = domain.ErrCodeSourceError
		out.Item.ErrorMsg = err.Error()
		return out, nil
	}

	var inputs []merge.ActorInput
	cur := local
	variants := resolve.QueryVariants(name)

sources:
	for _, src := range c.chain {
		for _, q := range variants {
			res := withLimitRetry(&c.base, func() source.Result[domain.ActorRecord] {
				return c.runner.Actor(ctx, src, c.sess, q)
			})
			out.Item.Attempts = append(out.Item.Attempts, attemptOf(res, q))

			if res.Kind == source.NotFound {
				if err := ctx.Err(); err != nil {
					return out, err
				}
				continue
			}
			if res.Kind == source.Failed {
				if err := c.onFailure(ctx, name, failure(res)); err != nil {
					return out, err
				}
				// 来源级失败：换名重试没有意义，直接下一个来源。
				continue sources
			}

			rec := res.Value
			if strings.TrimSpace(rec.Name) == "" {
				rec.Name = q
			}
			rec.OtherNames = withQueryName(rec, name)
			rec.ID = ""
			inputs = append(inputs, merge.ActorInput{Source: res.Source, Record: rec})

			cur = merge.ActorLocalWins(local, merge.ActorAcrossSources(inputs, c.priority))
			cur.Thumb = merge.ResolveThumb(cur)
			if merge.ActorComplete(cur) {
				c.log.Debug("actor complete, stop early", zap.String("name", name), zap.String("source", res.Source))
				break sources
			}
			c.log.Debug("actor still incomplete", zap.String("name", name), zap.Strings("missing", merge.MissingActorFields(cur)))
			break
		}
	}

	if len(inputs) == 0 {
		if hasLocal {
			out.Item.Status = domain.StatusCached
			out.Item.Sources = local.Sources
			out.Record = local
			return out, nil
		}
		noDataItem(&out.Item)
		return out, nil
	}

	if resolved {
		cur.ID = id
	}
	saved, err := c.store.Save(cur)
	if err != nil {
		c.log.Error("save actor failed", zap.String("name", name), zap.Error(err))
		out.Item.Status = domain.StatusFailed
		out.Item.ErrorCode = domain.ErrCodeIOFailed
		out.Item.ErrorMsg = err.Error()
		return out, nil
	}
	out.Record = saved
	out.Item.ID = saved.ID
	out.Item.Status = domain.StatusScraped
	out.Item.Sources = saved.Sources
	out.Item.Complete = merge.ActorComplete(saved)
	return out, nil
}

// withQueryName 保证查询用的名字能在之后通过索引解析回这条记录。
func withQueryName(rec domain.ActorRecord, query string) []string {
	for _, n := range rec.NameVariants() {
		if strings.EqualFold(n, query) {
			return rec.OtherNames
		}
	}
	return append(append([]string(nil), rec.OtherNames...), query)
}

// IsAborted 判断 err 是否为用户中止。
func IsAborted(err error) bool { return errors.Is(err, ErrAborted) }
