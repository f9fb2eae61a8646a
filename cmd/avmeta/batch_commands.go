package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/avmeta/internal/batch"
	"github.com/John-Robertt/avmeta/internal/domain"
)

func newMoviesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "movies",
		Short: "扫描媒体库并刮削所有未缓存的影片",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runBatch(cmd, domain.ModeMovies, func(c context.Context, d *batch.Driver) (domain.BatchReport, error) {
				return d.Movies(c)
			})
		},
	}
}

func newActorsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "actors",
		Short: "补全影片缓存中出现的所有演员，并回填影片的演员信息",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runBatch(cmd, domain.ModeActors, func(c context.Context, d *batch.Driver) (domain.BatchReport, error) {
				return d.Actors(c)
			})
		},
	}
}

func newMovieCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "movie <code>...",
		Short: "刮削指定的影片 CODE",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codes, err := parseCodes(args)
			if err != nil {
				return err
			}
			return ctx.runBatch(cmd, domain.ModeMovies, func(c context.Context, d *batch.Driver) (domain.BatchReport, error) {
				return d.Codes(c, codes, refresh)
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "忽略已有缓存，重新刮削并覆盖")
	return cmd
}

func parseCodes(args []string) ([]domain.Code, error) {
	codes := make([]domain.Code, 0, len(args))
	for _, a := range args {
		c, ok := domain.ParseCode(a)
		if !ok {
			return nil, fmt.Errorf("无效的 CODE：%q", a)
		}
		codes = append(codes, c)
	}
	return codes, nil
}

// runBatch 是所有刮削命令的公共流程：加载配置 -> 组装依赖 -> 执行 -> 输出报告。
//
// 条目失败不影响退出码；只有批处理无法开始或用户中止时返回非零。
func (c *commandContext) runBatch(cmd *cobra.Command, mode string, run func(context.Context, *batch.Driver) (domain.BatchReport, error)) error {
	if _, _, err := c.ensureConfig(cmd); err != nil {
		if emitErr := emitReport(cmd, reportForConfigError(mode, c.flags.path, err)); emitErr != nil {
			return emitErr
		}
		return errReported
	}

	sigCtx, stop := signalContext(cmd)
	defer stop()

	progressW, interactive := pickProgressWriter(cmd)
	var obs batch.Observer
	if interactive {
		obs = newProgressUI(progressW, c.eff)
	}

	rt, err := c.buildRuntime(sigCtx, cmd, obs)
	if err != nil {
		return err
	}
	defer rt.Close()

	rr, err := run(sigCtx, rt.driver)
	if err != nil {
		if errors.Is(err, batch.ErrLocked) {
			return fmt.Errorf("%w（%s）", err, rt.eff.CacheDir)
		}
		return err
	}
	if err := emitReport(cmd, rr); err != nil {
		return err
	}
	if interactive {
		emitLocations(progressW, rt.eff)
	}
	if rr.Aborted {
		return errReported
	}
	return sigCtx.Err()
}

// pickProgressWriter：进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
func pickProgressWriter(cmd *cobra.Command) (io.Writer, bool) {
	if w := cmd.ErrOrStderr(); isTerminal(w) {
		return w, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if w := cmd.OutOrStdout(); isTerminal(w) {
		return w, true
	}
	return nil, false
}
