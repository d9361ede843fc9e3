package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	lanpeer "github.com/dep2p/go-lanpeer"
	"github.com/dep2p/go-lanpeer/internal/api"
	"github.com/dep2p/go-lanpeer/internal/config"
	"github.com/dep2p/go-lanpeer/internal/util/logger"
)

var log = logger.Logger("cmd")

const (
	startTimeout = 15 * time.Second
	stopTimeout  = 10 * time.Second
)

// runFlags run 子命令参数
type runFlags struct {
	name              string
	port              int
	httpAddr          string
	configFile        string
	preventDuplicates bool
	duplicateMethod   string
	specificPort      int
	logLevel          string
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "启动节点",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNode(cmd, f)
		},
	}

	bindRunFlags(cmd.Flags(), f)
	return cmd
}

func bindRunFlags(fs *pflag.FlagSet, f *runFlags) {
	fs.StringVar(&f.name, "name", "", "广播的实例名（默认 lanpeer-<随机>）")
	fs.IntVar(&f.port, "port", 0, "TCP 监听端口（0 = 随机端口）")
	fs.StringVar(&f.httpAddr, "http", config.DefaultHTTPAddr, "HTTP 接口地址，空字符串表示关闭")
	fs.StringVar(&f.configFile, "config", "", "JSON 配置文件路径")
	fs.BoolVar(&f.preventDuplicates, "prevent-duplicates", false, "拒绝在同一主机上运行第二个实例")
	fs.StringVar(&f.duplicateMethod, "duplicate-method", config.DefaultDuplicateMethod, "重复实例检测方式 (lockfile/pidfile/port)")
	fs.IntVar(&f.specificPort, "specific-port", 0, "port 检测方式的目标端口（0 = 使用 --port）")
	fs.StringVar(&f.logLevel, "log-level", "", "日志级别 (debug/info/warn/error)")
}

// buildConfig 按 命令行 > 环境变量 > 配置文件 > 默认值 的优先级构建配置
func buildConfig(cmd *cobra.Command, f *runFlags) (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		log.Warn("忽略无效的环境变量", "err", err)
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.InstanceName = f.name
	}
	if flags.Changed("port") {
		cfg.ListenPort = f.port
	}
	if flags.Changed("http") {
		cfg.HTTPAddr = f.httpAddr
	}
	if flags.Changed("prevent-duplicates") {
		cfg.PreventDuplicates = f.preventDuplicates
	}
	if flags.Changed("duplicate-method") {
		cfg.DuplicateMethod = f.duplicateMethod
	}
	if flags.Changed("specific-port") {
		cfg.SpecificPort = f.specificPort
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("配置错误: %w", err)
	}
	return cfg, nil
}

func applyLogLevel(level string) error {
	if level == "" {
		return nil
	}
	l, ok := logger.ParseLevel(level)
	if !ok {
		return fmt.Errorf("未知日志级别 %q", level)
	}
	logger.SetGlobalLevel(l)
	return nil
}

func newApp(cfg *config.Config, populate ...any) *fx.App {
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
		fx.Supply(cfg),
		lanpeer.Module(),
		api.Module(),
		fx.Populate(populate...),
	)
}

func runNode(cmd *cobra.Command, f *runFlags) error {
	if err := applyLogLevel(f.logLevel); err != nil {
		return err
	}
	cfg, err := buildConfig(cmd, f)
	if err != nil {
		return err
	}

	var (
		svc *lanpeer.PeerService
		srv *api.Server
	)
	app := newApp(cfg, &svc, &srv)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	log.Info("启动 lanpeer", "version", lanpeer.Version, "commit", lanpeer.GitCommit)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", lanpeer.VersionInfo())
	fmt.Fprintf(out, "实例名:   %s\n", svc.InstanceName())
	fmt.Fprintf(out, "TCP 端口: %d\n", svc.Port())
	if addr := srv.Addr(); addr != "" {
		fmt.Fprintf(out, "HTTP:     http://%s\n", addr)
	}
	fmt.Fprintln(out, "节点已启动，按 Ctrl+C 退出")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)
	<-sig

	fmt.Fprintln(out, "\n正在关闭节点...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	return app.Stop(stopCtx)
}
