package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"pushsync/internal/autostart"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start watching with the current config at logon",
	RunE: func(cmd *cobra.Command, args []string) error {
		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		absConfig, err := filepath.Abs(configPath)
		if err != nil {
			return fmt.Errorf("invalid config path: %w", err)
		}

		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s: %w", absConfig, err)
		}

		as := autostart.New()
		if err := as.Install(execPath, absConfig); err != nil {
			return err
		}

		fmt.Println("pushsync registered for autostart")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}
