package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	internalApp "github.com/haierkeys/fast-note-offline/internal/app"
	"github.com/haierkeys/fast-note-offline/internal/domain"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// oneShotConfig 单次命令共享的配置文件参数
var oneShotConfig string

// withApp 加载配置与应用容器，执行 fn 后优雅关闭
// 需要账号的命令在未配置 remote.user-id 时直接失败
func withApp(needUID bool, fn func(ctx context.Context, a *internalApp.App) error) error {
	path, err := resolveConfig(oneShotConfig)
	if err != nil {
		return err
	}
	cfg, _, err := internalApp.LoadConfig(path)
	if err != nil {
		return err
	}
	// 单次命令不需要文件日志
	cfg.Log.File = ""

	a, _, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Shutdown(context.Background()); err != nil {
			a.Logger().Warn("shutdown", zap.Error(err))
		}
	}()

	if needUID && a.UID() == "" {
		return errors.New("remote.user-id is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func printJSON(v interface{}) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push pending local changes, then pull remote changes // 推送本地修改后拉取远端修改",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(true, func(ctx context.Context, a *internalApp.App) error {
			res, err := a.SyncService.FullSync(ctx, a.UID(), domain.TriggerManual)
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var hydrateForce bool

var hydrateCmd = &cobra.Command{
	Use:   "hydrate [--force]",
	Short: "Rebuild the local store from the remote account // 以远端数据重建本地存储",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(true, func(ctx context.Context, a *internalApp.App) error {
			if err := a.SyncService.Hydrate(ctx, a.UID(), hydrateForce); err != nil {
				if errors.Is(err, domain.ErrPendingChanges) {
					return errors.Wrap(err, "run sync first or pass --force")
				}
				return err
			}
			fmt.Println("local store rebuilt")
			return nil
		})
	},
}

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "List and resolve sync conflicts // 查看与解决同步冲突",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List unresolved conflicts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(true, func(ctx context.Context, a *internalApp.App) error {
			list, err := a.ConflictService.List(ctx, a.UID())
			if err != nil {
				return err
			}
			return printJSON(list)
		})
	},
}

var conflictsShowCmd = &cobra.Command{
	Use:   "show <entity-id>",
	Short: "Show the diff between the local and server versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(true, func(ctx context.Context, a *internalApp.App) error {
			preview, err := a.ConflictService.Preview(ctx, a.UID(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(preview.Diff)
			return nil
		})
	},
}

var conflictsResolveCmd = &cobra.Command{
	Use:   "resolve <entity-id> <local|server|both>",
	Short: "Resolve a conflict",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		choice, err := domain.ParseResolution(args[1])
		if err != nil {
			return err
		}
		return withApp(true, func(ctx context.Context, a *internalApp.App) error {
			return a.ConflictService.Resolve(ctx, a.UID(), args[0], choice)
		})
	},
}

var conflictsDismissCmd = &cobra.Command{
	Use:   "dismiss <entity-id>",
	Short: "Forget a conflict and keep the local record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(true, func(ctx context.Context, a *internalApp.App) error {
			return a.SyncService.RemoveConflict(ctx, a.UID(), args[0])
		})
	},
}

var migrateDemoCmd = &cobra.Command{
	Use:   "migrate-demo",
	Short: "Move demo-mode notes and tags into the configured account // 迁移演示数据到账号",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(true, func(ctx context.Context, a *internalApp.App) error {
			has, err := a.MigrationService.HasDemoData(ctx)
			if err != nil {
				return err
			}
			if !has {
				fmt.Println("no demo data to migrate")
				return nil
			}
			res, err := a.MigrationService.MigrateDemoToAccount(ctx, a.UID())
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Permanently remove notes that stayed in the recycle bin past the retention period // 清理回收站",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(true, func(ctx context.Context, a *internalApp.App) error {
			n, err := a.RetentionService.PurgeExpired(ctx, a.UID())
			if err != nil {
				return err
			}
			fmt.Printf("purged %d notes\n", n)
			return nil
		})
	},
}

func init() {
	hydrateCmd.Flags().BoolVar(&hydrateForce, "force", false, "overwrite local changes that were not pushed")
	conflictsCmd.AddCommand(conflictsListCmd, conflictsShowCmd, conflictsResolveCmd, conflictsDismissCmd)

	for _, c := range []*cobra.Command{syncCmd, hydrateCmd, conflictsCmd, migrateDemoCmd, purgeCmd} {
		c.PersistentFlags().StringVarP(&oneShotConfig, "config", "c", "", "config file")
		rootCmd.AddCommand(c)
	}
}
