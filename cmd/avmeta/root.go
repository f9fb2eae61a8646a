package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	ctx := newCommandContext(flags)

	rootCmd := &cobra.Command{
		Use:           "avmeta",
		Short:         "多来源影片/演员元数据刮削与缓存",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.path, "path", "", "媒体库目录（指定后配置文件可选）")
	pf.StringVarP(&flags.configFile, "config", "c", "", "配置文件路径（avmeta.json / avmeta.toml）")
	pf.StringVar(&flags.cacheDir, "cache-dir", "", "缓存目录（默认 {path}/cache）")
	pf.BoolVar(&flags.interactive, "interactive", false, "来源失败时询问是否继续")
	pf.BoolVar(&flags.scrapeCast, "scrape-cast", true, "影片模式下同时刮削演员")
	pf.StringVar(&flags.logLevel, "log-level", "", "日志级别：debug|info|warn|error")

	rootCmd.AddCommand(newMoviesCommand(ctx))
	rootCmd.AddCommand(newActorsCommand(ctx))
	rootCmd.AddCommand(newMovieCommand(ctx))
	rootCmd.AddCommand(newActorCommand(ctx))
	rootCmd.AddCommand(newIndexCommand(ctx))
	rootCmd.AddCommand(newPatchCommand(ctx))
	rootCmd.AddCommand(newPromoteCommand(ctx))

	return rootCmd
}
