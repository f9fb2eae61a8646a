package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/John-Robertt/avmeta/internal/batch"
	"github.com/John-Robertt/avmeta/internal/config"
	"github.com/John-Robertt/avmeta/internal/confirm"
	"github.com/John-Robertt/avmeta/internal/coord"
	"github.com/John-Robertt/avmeta/internal/logging"
	"github.com/John-Robertt/avmeta/internal/session"
	"github.com/John-Robertt/avmeta/internal/source"
	"github.com/John-Robertt/avmeta/internal/source/execsrc"
	"github.com/John-Robertt/avmeta/internal/source/javbus"
	"github.com/John-Robertt/avmeta/internal/source/javdb"
	"github.com/John-Robertt/avmeta/internal/store"
)

// errReported 表示错误已经以报告形式输出，main 只需要设置退出码。
var errReported = errors.New("reported")

type globalFlags struct {
	path        string
	configFile  string
	cacheDir    string
	interactive bool
	scrapeCast  bool
	logLevel    string
}

type commandContext struct {
	flags *globalFlags
	getwd func() (string, error)

	once   sync.Once
	eff    config.EffectiveConfig
	log    *zap.Logger
	cfgErr error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags, getwd: os.Getwd}
}

// ensureConfig 只加载一次配置与 logger。cmd 用于判断开关是否被显式指定。
func (c *commandContext) ensureConfig(cmd *cobra.Command) (config.EffectiveConfig, *zap.Logger, error) {
	c.once.Do(func() {
		cwd, err := c.getwd()
		if err != nil {
			c.cfgErr = fmt.Errorf("读取当前目录失败：%w", err)
			return
		}
		fs := cmd.Flags()
		eff, err := config.LoadEffective(cwd, config.CLIArgs{
			Path:           c.flags.path,
			ConfigFile:     c.flags.configFile,
			CacheDir:       c.flags.cacheDir,
			Interactive:    c.flags.interactive,
			InteractiveSet: fs.Changed("interactive"),
			ScrapeCast:     c.flags.scrapeCast,
			ScrapeCastSet:  fs.Changed("scrape-cast"),
			LogLevel:       c.flags.logLevel,
		})
		if err != nil {
			c.cfgErr = err
			return
		}
		log, err := logging.New(logging.Options{Level: eff.LogLevel, Format: eff.LogFormat, Output: cmd.ErrOrStderr()})
		if err != nil {
			c.cfgErr = err
			return
		}
		c.eff = eff
		c.log = log
		log.Debug("config loaded",
			zap.String("config", eff.ConfigPath),
			zap.String("library", eff.LibraryPath),
			zap.String("cache", eff.CacheDir),
			zap.Strings("movie_sources", eff.MovieSources),
			zap.Strings("actor_sources", eff.ActorSources))
	})
	return c.eff, c.log, c.cfgErr
}

// stores 打开两个缓存存储（不需要网络与会话的命令只用到这一层）。
func (c *commandContext) stores(cmd *cobra.Command) (*store.MovieStore, *store.ActorStore, error) {
	eff, log, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	return store.NewMovieStore(eff.CacheDir, log), store.NewActorStore(eff.CacheDir, log), nil
}

// runtime 是一次刮削命令需要的全部依赖。
type runtime struct {
	eff    config.EffectiveConfig
	log    *zap.Logger
	movies *store.MovieStore
	actors *store.ActorStore
	driver *batch.Driver

	closers []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.log.Debug("close failed", zap.Error(err))
		}
	}
	_ = r.log.Sync()
}

// buildRuntime 组装来源注册表、确认器、会话与协调器。
func (c *commandContext) buildRuntime(ctx context.Context, cmd *cobra.Command, obs batch.Observer) (*runtime, error) {
	eff, log, err := c.ensureConfig(cmd)
	if err != nil {
		return nil, err
	}
	rt := &runtime{
		eff:    eff,
		log:    log,
		movies: store.NewMovieStore(eff.CacheDir, log),
		actors: store.NewActorStore(eff.CacheDir, log),
	}

	confirmer, closeConfirmer, err := newConfirmer(ctx, cmd, eff, log)
	if err != nil {
		return nil, err
	}
	if closeConfirmer != nil {
		rt.closers = append(rt.closers, closeConfirmer)
	}

	reg, err := newRegistry(eff, confirmer, log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	movieChain, err := reg.MovieChain(eff.MovieSources)
	if err != nil {
		rt.Close()
		return nil, err
	}
	actorChain, err := reg.ActorChain(eff.ActorSources)
	if err != nil {
		rt.Close()
		return nil, err
	}

	runner := source.NewRunner(eff.SourceTimeout, log)
	opts := func() coord.Options {
		return coord.Options{
			Runner:    runner,
			Session:   session.New(session.Options{ProxyURL: eff.ProxyURL, Limit: eff.SessionLimit, Log: log}),
			Confirmer: confirmer,
			Log:       log,
		}
	}
	actorCoord := coord.NewActor(opts(), rt.actors, actorChain)
	var cast *coord.ActorCoordinator
	if eff.ScrapeCast {
		cast = coord.NewActor(opts(), rt.actors, actorChain)
	}
	movieCoord := coord.NewMovie(opts(), rt.movies, movieChain, eff.FieldPriority, cast)

	rt.driver = batch.New(batch.Options{
		LibraryPath: eff.LibraryPath,
		CacheDir:    eff.CacheDir,
		ItemDelay:   eff.ItemDelay,
		Movies:      rt.movies,
		Actors:      rt.actors,
		MovieCoord:  movieCoord,
		ActorCoord:  actorCoord,
		Observer:    obs,
		Log:         log,
	})
	return rt, nil
}

// newConfirmer：非交互返回 nil；配置了 confirm_url 时走 WebSocket，否则走终端。
func newConfirmer(ctx context.Context, cmd *cobra.Command, eff config.EffectiveConfig, log *zap.Logger) (confirm.Confirmer, func() error, error) {
	if !eff.Interactive {
		return nil, nil, nil
	}
	if eff.ConfirmURL != "" {
		ws, err := confirm.DialWebSocket(ctx, eff.ConfirmURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("连接确认服务失败：%w", err)
		}
		return ws, ws.Close, nil
	}
	return confirm.NewStdio(cmd.InOrStdin(), cmd.ErrOrStderr()), nil, nil
}

func newRegistry(eff config.EffectiveConfig, confirmer confirm.Confirmer, log *zap.Logger) (*source.Registry, error) {
	reg := source.NewRegistry()
	bus := javbus.Source{}
	db := javdb.Source{BaseURL: eff.JavDBBaseURL}
	for _, add := range []func() error{
		func() error { return reg.AddMovie(bus) },
		func() error { return reg.AddActor(bus) },
		func() error { return reg.AddMovie(db) },
		func() error { return reg.AddActor(db) },
	} {
		if err := add(); err != nil {
			return nil, fmt.Errorf("初始化来源注册表失败：%w", err)
		}
	}
	for _, cfg := range eff.ExecSources {
		s, err := execsrc.New(cfg, confirmer, log)
		if err != nil {
			return nil, err
		}
		if s.Entity() == execsrc.EntityMovie {
			err = reg.AddMovie(s)
		} else {
			err = reg.AddActor(s)
		}
		if err != nil {
			return nil, fmt.Errorf("初始化来源注册表失败：%w", err)
		}
	}
	return reg, nil
}

// signalContext 在 Ctrl-C / SIGTERM 时取消；已完成的条目保持落盘。
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// withLock 在缓存目录的单写者锁内执行 fn（不经过批处理驱动的命令使用）。
func withLock(cacheDir string, fn func() error) error {
	unlock, err := batch.Lock(cacheDir)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}
