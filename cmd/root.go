package cmd

import (
	"fmt"
	"os"
	"pushsync/internal/config"
	"pushsync/internal/logger"

	"github.com/spf13/cobra"
)

var (
	cfg        *config.Config
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:           "pushsync",
	Short:         "Push local file changes to remote servers",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "help", "completion", "example", "uninstall":
			return nil
		}

		// pushsync [config] and pushsync watch [config]
		if cmd == rootCmd || cmd == watchCmd {
			if len(args) == 1 {
				configPath = args[0]
			}
		}

		if err := logger.Init(debug, ""); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func daemonURL(path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", cfg.DaemonPort, path)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "pushsync.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}
