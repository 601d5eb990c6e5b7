// cli.go - 命令行入口
// 不带子命令时启动桌面应用；其余子命令通过本机控制接口操作正在运行的应用

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"traysites/config"
	"traysites/internal/controlapi"
	"traysites/internal/site"
)

// rootFlags 全局参数
type rootFlags struct {
	configPath string
	addr       string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "traysites",
		Short: "把网站变成系统托盘常驻的小应用",
		Long: `TraySites 为每个添加的网站创建一个托盘图标，
点击图标在托盘附近弹出网站窗口，窗口失去焦点后自动隐藏。`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDesktop(flags.configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "配置文件路径（默认位于应用数据目录）")
	cmd.PersistentFlags().StringVar(&flags.addr, "addr", "", "控制接口地址（默认读取配置文件）")

	// 子命令（按字母顺序）
	cmd.AddCommand(newAddCmd(&flags))
	cmd.AddCommand(newSiteActionCmd(&flags, "delete", "删除站点"))
	cmd.AddCommand(newSiteActionCmd(&flags, "exit", "退出站点（销毁窗口与托盘）"))
	cmd.AddCommand(newSiteActionCmd(&flags, "init", "初始化站点托盘（不打开窗口）"))
	cmd.AddCommand(newListCmd(&flags))
	cmd.AddCommand(newShowCmd(&flags))
	cmd.AddCommand(newSiteActionCmd(&flags, "open", "打开站点窗口"))
	cmd.AddCommand(newStatusCmd(&flags))
	cmd.AddCommand(newSiteActionCmd(&flags, "stop", "停止站点（销毁窗口，保留托盘）"))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func (f *rootFlags) resolvedConfigPath() string {
	if f.configPath != "" {
		return f.configPath
	}
	return config.DefaultConfigPath()
}

// client 控制接口地址优先取 --addr，其次取配置文件
func (f *rootFlags) client() (*controlapi.Client, error) {
	if f.addr != "" {
		return controlapi.NewClient(f.addr, nil), nil
	}

	cfg, err := config.LoadConfig(f.resolvedConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return nil, err
	}
	if !cfg.Control.Enabled {
		return nil, fmt.Errorf("控制接口未启用（control.enabled=false）")
	}
	return controlapi.NewClient(cfg.Control.Addr(), nil), nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 15*time.Second)
}

func newAddCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>",
		Short: "添加站点",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			view, err := client.Add(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ 已添加 %s (%s)\n", view.URL, view.ID)
			return nil
		},
	}
}

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出站点",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			views, err := client.List(ctx)
			if err != nil {
				return err
			}
			return printSites(cmd.OutOrStdout(), views)
		},
	}
}

func newShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "查看单个站点",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			view, err := client.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printSites(cmd.OutOrStdout(), []site.View{view})
		},
	}
}

func newSiteActionCmd(flags *rootFlags, action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			if action == "delete" {
				err = client.Delete(ctx, args[0])
			} else {
				err = client.Action(ctx, args[0], action)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ %s %s\n", action, args[0])
			return nil
		},
	}
}

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "查看正在运行的应用状态",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := flags.client()
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()

			status, err := client.Status(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version: %s\n", status.Version)
			fmt.Fprintf(out, "Uptime:  %s\n", status.Uptime)
			fmt.Fprintf(out, "Sites:   %d (%d shown)\n", status.SiteCount, status.ShownCount)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "TraySites\n")
			fmt.Fprintf(out, "Version: %s\n", Version)
			fmt.Fprintf(out, "Commit: %s\n", Commit)
			fmt.Fprintf(out, "Built: %s\n", BuildTime)
		},
	}
}

func printSites(w io.Writer, views []site.View) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tURL")
	for _, v := range views {
		id := v.ID
		if v.Main {
			id += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", id, v.State, v.URL)
	}
	return tw.Flush()
}
