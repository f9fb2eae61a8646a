package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/infra/httpx"
	"github.com/John-Robertt/avmeta/internal/library"
)

// maxPatchBytes 限制 patch 输入大小（一个 JSON 对象，通常只有几 KiB）。
const maxPatchBytes = 4 << 20

func newPatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "patch <code> <file|->",
		Short: "用一个 JSON 对象修改影片缓存（被修改字段记为 manual）",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, ok := domain.ParseCode(args[0])
			if !ok {
				return fmt.Errorf("无效的 CODE：%q", args[0])
			}
			b, err := readPatch(cmd, args[1])
			if err != nil {
				return err
			}
			eff, _, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			movies, _, err := ctx.stores(cmd)
			if err != nil {
				return err
			}
			var env domain.MovieEnvelope
			err = withLock(eff.CacheDir, func() error {
				var err error
				env, err = movies.Patch(code, b)
				return err
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, env)
		},
	}
}

func readPatch(cmd *cobra.Command, arg string) ([]byte, error) {
	var r io.Reader
	if arg == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(arg)
		if err != nil {
			return nil, fmt.Errorf("读取 patch 失败：%w", err)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(io.LimitReader(r, maxPatchBytes+1))
	if err != nil {
		return nil, fmt.Errorf("读取 patch 失败：%w", err)
	}
	if len(b) > maxPatchBytes {
		return nil, fmt.Errorf("patch 过大（>%d bytes）", maxPatchBytes)
	}
	return b, nil
}

func newPromoteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <code>",
		Short: "把已缓存的影片写入媒体库目录（NFO/fanart/poster/视频），并删除缓存",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, ok := domain.ParseCode(args[0])
			if !ok {
				return fmt.Errorf("无效的 CODE：%q", args[0])
			}
			eff, log, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			movies, _, err := ctx.stores(cmd)
			if err != nil {
				return err
			}
			client, err := httpx.NewImageClient(eff.ProxyURL, eff.ImageProxy)
			if err != nil {
				return err
			}

			sigCtx, stop := signalContext(cmd)
			defer stop()

			var res library.Result
			err = withLock(eff.CacheDir, func() error {
				var err error
				res, err = library.New(eff.LibraryPath, movies, client, log).Promote(sigCtx, code)
				return err
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, res)
		},
	}
}
