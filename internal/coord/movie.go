package coord

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/merge"
	"github.com/John-Robertt/avmeta/internal/source"
	"github.com/John-Robertt/avmeta/internal/store"
)

// MovieResult 是一个 CODE 的处理结果。
type MovieResult struct {
	Item   domain.ItemResult
	Record domain.MovieRecord
	// Cast 为 scrape_cast 开启时各演员的处理结果（按出场顺序）。
	Cast []ActorResult
}

// MovieCoordinator 顺序调用全部影片来源，最后按字段优先级合并一次。
type MovieCoordinator struct {
	base
	store     *store.MovieStore
	chain     []source.MovieSource
	order     []string
	overrides map[string][]string
	cast      *ActorCoordinator
}

// NewMovie 构造影片协调器。cast 非 nil 时，落盘后把演员名交给它处理。
func NewMovie(opts Options, st *store.MovieStore, chain []source.MovieSource, overrides map[string][]string, cast *ActorCoordinator) *MovieCoordinator {
	order := make([]string, 0, len(chain))
	for _, s := range chain {
		order = append(order, strings.ToLower(strings.TrimSpace(s.Name())))
	}
	return &MovieCoordinator{
		base:      newBase(opts, "movie"),
		store:     st,
		chain:     chain,
		order:     order,
		overrides: overrides,
		cast:      cast,
	}
}

// Close 关闭自身与演员协调器的会话。
func (c *MovieCoordinator) Close() {
	c.base.Close()
	if c.cast != nil {
		c.cast.Close()
	}
}

// Scrape 刮削一个 CODE。videoFile 为对应的视频文件名（可为空）。
//
// 全部来源都没有数据时返回只带 code 的记录，条目标记为 failed，且不落盘。
// 返回的 error 只有 ErrAborted 与 ctx 取消。
func (c *MovieCoordinator) Scrape(ctx context.Context, code domain.Code, videoFile string) (MovieResult, error) {
	out := MovieResult{Item: domain.ItemResult{Key: string(code)}, Record: domain.MovieRecord{Code: code}}

	if err := c.open(); err != nil {
		out.Item.Status = domain.StatusFailed
		out.Item.ErrorCode = domain.ErrCodeSourceError
		out.Item.ErrorMsg = err.Error()
		return out, nil
	}

	var inputs []merge.MovieInput
	codes := []domain.Code{code}
	for _, src := range c.chain {
		res := withLimitRetry(&c.base, func() source.Result[[]domain.MovieRecord] {
			return c.runner.Movies(ctx, src, c.sess, codes)
		})
		out.Item.Attempts = append(out.Item.Attempts, attemptOf(res, string(code)))

		switch res.Kind {
		case source.OK:
			if len(res.Value) > 1 {
				c.log.Debug("source returned several records for one code, using first", zap.String("source", res.Source), zap.Int("n", len(res.Value)))
			}
			inputs = append(inputs, merge.MovieInput{Source: res.Source, Record: res.Value[0]})
		case source.Failed:
			if err := c.onFailure(ctx, string(code), failure(res)); err != nil {
				return out, err
			}
		default:
			if err := ctx.Err(); err != nil {
				return out, err
			}
		}
	}

	rec, sources := merge.Movies(code, inputs, c.order, c.overrides)
	if len(inputs) == 0 {
		noDataItem(&out.Item)
		c.log.Info("no source returned data", zap.String("code", string(code)))
		return out, nil
	}

	rec.Provenance.VideoFile = videoFile
	env := domain.MovieEnvelope{
		ScrapedAt: c.now().UTC(),
		Sources:   sources,
		VideoFile: videoFile,
		Data:      rec,
	}
	if err := c.store.Save(env); err != nil {
		c.log.Error("save movie failed", zap.String("code", string(code)), zap.Error(err))
		out.Item.Status = domain.StatusFailed
		out.Item.ErrorCode = domain.ErrCodeIOFailed
		out.Item.ErrorMsg = err.Error()
		return out, nil
	}
	out.Record = rec
	out.Item.Status = domain.StatusScraped
	out.Item.Sources = sources

	if c.cast == nil {
		return out, nil
	}
	for _, name := range rec.ActorNames() {
		ar, err := c.cast.Scrape(ctx, name)
		out.Cast = append(out.Cast, ar)
		if err != nil {
			return out, err
		}
	}

	// 演员记录已更新：立即回填本片的 ActorRef，避免等到演员批处理。
	if refs, changed := ReconcileRefs(rec.Actors, c.cast.Lookup); changed {
		rec.Actors = refs
		env.Data = rec
		if err := c.store.Save(env); err != nil {
			c.log.Warn("save reconciled cast failed", zap.String("code", string(code)), zap.Error(err))
		} else {
			out.Record = rec
		}
	}
	return out, nil
}
