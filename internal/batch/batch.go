// Package batch 驱动整批处理：影片模式（扫描媒体库 -> 逐个 CODE 刮削）与
// 演员模式（从影片缓存收集演员 -> 逐个补全 -> 回填影片的 ActorRef）。
//
// 单条失败只进报告，不让整批失败；用户中止（coord.ErrAborted）会停止后续条目，
// 已完成的条目保持落盘。
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/avmeta/internal/coord"
	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/merge"
	"github.com/John-Robertt/avmeta/internal/scan"
	"github.com/John-Robertt/avmeta/internal/store"
)

// Options 描述一次批处理需要的依赖。
type Options struct {
	LibraryPath string
	CacheDir    string
	// ItemDelay 是两个需要访问来源的条目之间的最小间隔。
	ItemDelay time.Duration

	Movies     *store.MovieStore
	Actors     *store.ActorStore
	MovieCoord *coord.MovieCoordinator
	ActorCoord *coord.ActorCoordinator

	Observer Observer
	Log      *zap.Logger
}

type Driver struct {
	opts    Options
	limiter *rate.Limiter
	obs     Observer
	log     *zap.Logger
	now     func() time.Time
}

func New(opts Options) *Driver {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	limit := rate.Inf
	if opts.ItemDelay > 0 {
		limit = rate.Every(opts.ItemDelay)
	}
	return &Driver{
		opts:    opts,
		limiter: rate.NewLimiter(limit, 1),
		obs:     obs,
		log:     log.Named("batch"),
		now:     time.Now,
	}
}

func (d *Driver) newReport(mode string) domain.BatchReport {
	return domain.BatchReport{
		RunID:     uuid.NewString(),
		Mode:      mode,
		Path:      d.opts.LibraryPath,
		StartedAt: d.now().UTC(),
		Items:     make([]domain.ItemResult, 0, 64),
	}
}

func (d *Driver) finish(r *domain.BatchReport) {
	r.FinishedAt = d.now().UTC()
	r.Finalize()
	d.log.Info("batch finished",
		zap.String("run_id", r.RunID),
		zap.String("mode", r.Mode),
		zap.Int("total", r.Summary.Total),
		zap.Int("scraped", r.Summary.Scraped),
		zap.Int("cached", r.Summary.Cached),
		zap.Int("failed", r.Summary.Failed),
		zap.Bool("aborted", r.Aborted))
}

// Movies 执行影片模式。
//
// 返回的 error 只表示批处理没能开始（拿不到锁、扫描失败）；条目级失败都在报告里。
func (d *Driver) Movies(ctx context.Context) (domain.BatchReport, error) {
	rr := d.newReport(domain.ModeMovies)
	d.obs.OnStart(rr.Mode, rr.Path)

	unlock, err := Lock(d.opts.CacheDir)
	if err != nil {
		return rr, err
	}
	defer unlock()
	defer d.opts.MovieCoord.Close()

	scanStarted := time.Now()
	files, err := scan.ScanVideos(d.opts.LibraryPath)
	if err != nil {
		return rr, fmt.Errorf("扫描媒体库失败：%w", err)
	}
	codes, video := scan.UniqueCodes(files)
	unmatched := 0
	for _, f := range files {
		if f.Code == "" {
			unmatched++
			rr.Items = append(rr.Items, domain.ItemResult{
				Status:    domain.StatusFailed,
				ErrorCode: domain.ErrCodeInvalidCode,
				ErrorMsg:  fmt.Sprintf("无法从文件名解析出 CODE：%s", f.Name),
			})
		}
	}
	d.obs.OnPhaseDone("scan", map[string]any{
		"files":     len(files),
		"codes":     len(codes),
		"unmatched": unmatched,
	}, time.Since(scanStarted))

	planStarted := time.Now()
	submit := make([]domain.Code, 0, len(codes))
	for _, c := range codes {
		if d.opts.Movies.Exists(c) {
			rr.Items = append(rr.Items, domain.ItemResult{Key: string(c), Status: domain.StatusCached})
			continue
		}
		submit = append(submit, c)
	}
	d.obs.OnPhaseDone("plan", map[string]any{
		"cached":    len(codes) - len(submit),
		"submitted": len(submit),
	}, time.Since(planStarted))

	d.scrapeMovies(ctx, submit, video, &rr)

	d.finish(&rr)
	return rr, nil
}

// Codes 只处理给定的 CODE。refresh=false 时已缓存的 CODE 直接报告 cached；
// refresh=true 时重新刮削并覆盖缓存。视频文件名从媒体库根目录匹配，找不到为空。
func (d *Driver) Codes(ctx context.Context, codes []domain.Code, refresh bool) (domain.BatchReport, error) {
	rr := d.newReport(domain.ModeMovies)
	d.obs.OnStart(rr.Mode, rr.Path)

	unlock, err := Lock(d.opts.CacheDir)
	if err != nil {
		return rr, err
	}
	defer unlock()
	defer d.opts.MovieCoord.Close()

	files, err := scan.ScanVideos(d.opts.LibraryPath)
	if err != nil {
		d.log.Debug("scan library failed", zap.Error(err))
	}
	_, found := scan.UniqueCodes(files)

	planStarted := time.Now()
	seen := make(map[domain.Code]struct{}, len(codes))
	video := make(map[domain.Code]string, len(codes))
	submit := make([]domain.Code, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		for fc, name := range found {
			if domain.SameCode(fc, c) {
				video[c] = name
			}
		}
		if !refresh && d.opts.Movies.Exists(c) {
			rr.Items = append(rr.Items, domain.ItemResult{Key: string(c), Status: domain.StatusCached})
			continue
		}
		submit = append(submit, c)
	}
	d.obs.OnPhaseDone("plan", map[string]any{
		"cached":    len(seen) - len(submit),
		"submitted": len(submit),
	}, time.Since(planStarted))

	d.scrapeMovies(ctx, submit, video, &rr)

	d.finish(&rr)
	return rr, nil
}

func (d *Driver) scrapeMovies(ctx context.Context, submit []domain.Code, video map[domain.Code]string, rr *domain.BatchReport) {
	execStarted := time.Now()
	cast := 0
	for i, c := range submit {
		if err := d.limiter.Wait(ctx); err != nil {
			d.log.Info("batch interrupted", zap.Error(err))
			break
		}
		started := time.Now()
		res, err := d.opts.MovieCoord.Scrape(ctx, c, video[c])
		cast += len(res.Cast)
		item := res.Item
		if err != nil {
			d.fold(&item, err, rr)
		}
		rr.Items = append(rr.Items, item)
		d.obs.OnItemDone(i+1, len(submit), string(c), item, time.Since(started))
		if err != nil {
			break
		}
	}
	d.obs.OnPhaseDone("exec", map[string]any{"cast": cast}, time.Since(execStarted))
}

// Actors 执行演员模式，最后回填所有影片缓存中的 ActorRef。
func (d *Driver) Actors(ctx context.Context) (domain.BatchReport, error) {
	rr := d.newReport(domain.ModeActors)
	d.obs.OnStart(rr.Mode, rr.Path)

	unlock, err := Lock(d.opts.CacheDir)
	if err != nil {
		return rr, err
	}
	defer unlock()
	defer d.opts.ActorCoord.Close()

	collectStarted := time.Now()
	names, movies, err := d.collectNames()
	if err != nil {
		return rr, fmt.Errorf("读取影片缓存失败：%w", err)
	}
	d.obs.OnPhaseDone("collect", map[string]any{
		"movies": movies,
		"names":  len(names),
	}, time.Since(collectStarted))

	d.scrapeActors(ctx, names, &rr)

	d.finish(&rr)
	return rr, nil
}

// Names 只处理给定的演员名（已完整的记录直接报告 cached），随后同样回填影片缓存。
func (d *Driver) Names(ctx context.Context, names []string) (domain.BatchReport, error) {
	rr := d.newReport(domain.ModeActors)
	d.obs.OnStart(rr.Mode, rr.Path)

	unlock, err := Lock(d.opts.CacheDir)
	if err != nil {
		return rr, err
	}
	defer unlock()
	defer d.opts.ActorCoord.Close()

	d.scrapeActors(ctx, names, &rr)

	d.finish(&rr)
	return rr, nil
}

func (d *Driver) scrapeActors(ctx context.Context, names []string, rr *domain.BatchReport) {
	execStarted := time.Now()
	for i, name := range names {
		started := time.Now()
		var item domain.ItemResult

		if rec, ok := d.opts.ActorCoord.Lookup(name); ok && merge.ActorComplete(rec) {
			item = domain.ItemResult{Key: name, ID: rec.ID, Status: domain.StatusCached, Sources: rec.Sources, Complete: true}
		} else {
			if err := d.limiter.Wait(ctx); err != nil {
				d.log.Info("batch interrupted", zap.Error(err))
				break
			}
			res, err := d.opts.ActorCoord.Scrape(ctx, name)
			item = res.Item
			if err != nil {
				d.fold(&item, err, rr)
				rr.Items = append(rr.Items, item)
				d.obs.OnItemDone(i+1, len(names), name, item, time.Since(started))
				break
			}
		}
		rr.Items = append(rr.Items, item)
		d.obs.OnItemDone(i+1, len(names), name, item, time.Since(started))
	}
	d.obs.OnPhaseDone("exec", nil, time.Since(execStarted))

	if ctx.Err() == nil && d.opts.Movies != nil {
		recStarted := time.Now()
		rec := d.Reconcile()
		rr.Reconcile = &rec
		d.obs.OnPhaseDone("reconcile", map[string]any{
			"movies":  rec.Movies,
			"updated": rec.Updated,
			"failed":  rec.Failed,
		}, time.Since(recStarted))
	}
}

// Reconcile 用演员记录重写每个影片缓存中的 ActorRef（role 保持不变）。
func (d *Driver) Reconcile() domain.Reconcile {
	var out domain.Reconcile
	codes, err := d.opts.Movies.List()
	if err != nil {
		d.log.Warn("list movies failed", zap.Error(err))
		return out
	}
	for _, c := range codes {
		env, ok := d.opts.Movies.Load(c)
		if !ok {
			out.Failed++
			continue
		}
		out.Movies++
		refs, changed := coord.ReconcileRefs(env.Data.Actors, d.opts.ActorCoord.Lookup)
		if !changed {
			continue
		}
		env.Data.Actors = refs
		if err := d.opts.Movies.Save(env); err != nil {
			d.log.Warn("save reconciled movie failed", zap.String("code", string(c)), zap.Error(err))
			out.Failed++
			continue
		}
		out.Updated++
	}
	return out
}

// collectNames 按首次出现顺序收集所有影片缓存中的演员名。
func (d *Driver) collectNames() ([]string, int, error) {
	codes, err := d.opts.Movies.List()
	if err != nil {
		return nil, 0, err
	}
	seen := make(map[string]struct{})
	var names []string
	movies := 0
	for _, c := range codes {
		env, ok := d.opts.Movies.Load(c)
		if !ok {
			continue
		}
		movies++
		for _, n := range env.Data.ActorNames() {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			names = append(names, n)
		}
	}
	return names, movies, nil
}

// fold 把协调器返回的终止性错误折叠进条目与报告。
func (d *Driver) fold(item *domain.ItemResult, err error, rr *domain.BatchReport) {
	item.Status = domain.StatusFailed
	if coord.IsAborted(err) {
		rr.Aborted = true
		item.ErrorCode = domain.ErrCodeAborted
		item.ErrorMsg = "用户选择停止批处理"
		d.log.Info("batch aborted by user", zap.String("key", item.Key))
		return
	}
	item.ErrorCode = domain.ErrCodeSourceError
	item.ErrorMsg = err.Error()
}
