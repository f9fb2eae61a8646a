package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/avmeta/internal/batch"
	"github.com/John-Robertt/avmeta/internal/domain"
	"github.com/John-Robertt/avmeta/internal/index"
	"github.com/John-Robertt/avmeta/internal/merge"
	"github.com/John-Robertt/avmeta/internal/resolve"
)

func newActorCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "actor",
		Short: "单个演员的刮削与维护",
	}
	cmd.AddCommand(newActorScrapeCommand(ctx))
	cmd.AddCommand(newActorShowCommand(ctx))
	cmd.AddCommand(newActorRemoveCommand(ctx))
	return cmd
}

func newActorScrapeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scrape <name>...",
		Short: "刮削指定演员（已完整的记录不会访问来源）",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := make([]string, 0, len(args))
			for _, a := range args {
				if n := strings.Join(strings.Fields(a), " "); n != "" {
					names = append(names, n)
				}
			}
			if len(names) == 0 {
				return fmt.Errorf("演员名不能为空")
			}
			return ctx.runBatch(cmd, domain.ModeActors, func(c context.Context, d *batch.Driver) (domain.BatchReport, error) {
				return d.Names(c, names)
			})
		},
	}
}

// actorView 是 actor show 的输出。
type actorView struct {
	Query    string             `json:"query"`
	Via      string             `json:"via"`
	Complete bool               `json:"complete"`
	Missing  []string           `json:"missing"`
	Record   domain.ActorRecord `json:"record"`
}

func newActorShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "按名称解析并显示本地演员记录",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, actors, err := ctx.stores(cmd)
			if err != nil {
				return err
			}
			if _, err := actors.EnsureIndex(); err != nil {
				return fmt.Errorf("重建名称索引失败：%w", err)
			}
			id, via, ok := resolve.New(actors.Index(), actors, ctx.log).Resolve(args[0])
			if !ok {
				return fmt.Errorf("未找到演员：%q", args[0])
			}
			rec, ok := actors.Load(id)
			if !ok {
				return fmt.Errorf("演员记录 %q 无法读取", id)
			}
			view := actorView{
				Query:    args[0],
				Via:      via,
				Complete: merge.ActorComplete(rec),
				Missing:  merge.MissingActorFields(rec),
				Record:   rec,
			}
			if view.Missing == nil {
				view.Missing = []string{}
			}
			if isTerminal(cmd.OutOrStdout()) {
				fmt.Fprintln(cmd.OutOrStdout(), renderActor(view))
				return nil
			}
			return writeJSON(cmd, view)
		},
	}
}

func renderActor(v actorView) string {
	r := v.Record
	rows := [][]string{
		{"id", r.ID},
		{"name", r.Name},
		{"altName", r.AltName},
		{"otherNames", strings.Join(r.OtherNames, ", ")},
		{"birthdate", r.Birthdate},
		{"height", intOrEmpty(r.Height)},
		{"bust/waist/hips", strings.Join([]string{intOrEmpty(r.Bust), intOrEmpty(r.Waist), intOrEmpty(r.Hips)}, "/")},
		{"thumb", merge.ResolveThumb(r)},
		{"sources", strings.Join(r.Sources, ", ")},
		{"complete", strconv.FormatBool(v.Complete)},
		{"missing", strings.Join(v.Missing, ", ")},
		{"resolved via", v.Via},
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func intOrEmpty(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func newActorRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "删除演员记录及其全部索引条目",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, _, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			_, actors, err := ctx.stores(cmd)
			if err != nil {
				return err
			}
			return withLock(eff.CacheDir, func() error {
				if err := actors.Delete(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "已删除：%s\n", args[0])
				return nil
			})
		},
	}
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "演员名称索引维护",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "从演员记录全量重建名称索引",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eff, _, err := ctx.ensureConfig(cmd)
			if err != nil {
				return err
			}
			_, actors, err := ctx.stores(cmd)
			if err != nil {
				return err
			}
			var stats index.RebuildStats
			err = withLock(eff.CacheDir, func() error {
				var err error
				stats, err = actors.Index().Rebuild(actors)
				return err
			})
			if err != nil {
				return fmt.Errorf("重建名称索引失败：%w", err)
			}
			return writeJSON(cmd, stats)
		},
	})
	return cmd
}
