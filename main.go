package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"vecScope/config"
	"vecScope/mem"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "vecscope",
	Short:         "live vector telemetry read from another process",
	Long:          `vecscope attaches to a running process, follows a pointer chain or byte signature to an object and graphs a 3-component vector read from it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "graph the telemetry in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		view := newTermView(os.Stdout)
		s, err := newSession(cfg, view)
		if err != nil {
			return err
		}
		defer s.Close()

		view.begin()
		defer view.end()
		s.Start(ctx)
		<-ctx.Done()
		return nil
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "sample in the background and inspect the target interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s, err := newSession(cfg, nil)
		if err != nil {
			return err
		}
		defer s.Close()

		s.Start(ctx)
		newConsole(s).Interactive()
		return nil
	},
}

var modulesCmd = &cobra.Command{
	Use:   "modules <process>",
	Short: "list the modules loaded by a process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		acc := mem.NewAccessor(mem.NewSystem())
		h, err := acc.Attach(args[0])
		if err != nil {
			return err
		}
		mods, err := acc.ListModules(h)
		if err != nil {
			return err
		}
		printModules(h, mods, "")
		return nil
	},
}

func setup(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(viper.New(), cmd.Flags(), cfgFile)
	if err != nil {
		return cfg, err
	}
	initLogger(cfg.LogFile)
	crashFile = cfg.CrashFile
	if cfg.MetricsAddr != "" {
		go guard("metrics", func() { serveMetrics(cfg.MetricsAddr) })
	}
	zap.S().Infow("starting", "command", cmd.Name(), "process", cfg.Process, "module", cfg.Module)
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
	config.Flags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(watchCmd, consoleCmd, modulesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		LogError("%v", err)
		os.Exit(1)
	}
	zap.L().Sync()
}
