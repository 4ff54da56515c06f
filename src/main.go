package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ObservatoireDelinquance/src/config"
	"ObservatoireDelinquance/src/storage"
)

const (
	configFile     = "config.json"
	dataConfigFile = "dataconfig.json"
)

// app 子命令共享的配置与日志
type app struct {
	configDir string
	dataDir   string
	logFile   string

	cfg    *config.Config
	dc     *config.DataConfig
	logger *storage.Logger
}

// setup 加载配置并初始化日志; 命令行参数覆盖配置文件
func (a *app) setup() error {
	cfg, dc, err := config.LoadConfig(a.configDir, configFile, dataConfigFile)
	if err != nil {
		return err
	}
	c := *cfg
	if a.dataDir != "" {
		c.DataDir = a.dataDir
	}
	if a.logFile != "" {
		c.LogName = a.logFile
	}
	a.cfg, a.dc = &c, dc

	logger, err := storage.NewLogger(c.LogName, storage.WithConsole())
	if err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Close()
		a.logger = nil
	}
}

// run 包装子命令, 结束时关闭日志
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer a.close()
		if err := fn(cmd, args); err != nil {
			a.logger.Error(err.Error())
			return err
		}
		return nil
	}
}

func (a *app) dataFile(name string) string {
	return filepath.Join(a.cfg.DataDir, name)
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "observatoire",
		Short:         "Observatoire de la délinquance: nettoyage SSMSI et tableau de bord",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	cmd.PersistentFlags().StringVar(&a.configDir, "config", "./config", "dossier contenant config.json et dataconfig.json")
	cmd.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "remplace data_dir de la configuration")
	cmd.PersistentFlags().StringVar(&a.logFile, "log", "", "fichier journal (défaut: log_name)")

	cmd.AddCommand(cleanCmd(a), serveCmd(a), loadDBCmd(a), diagnoseCmd(a))
	return cmd
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Erreur:", err)
		os.Exit(1)
	}
}
