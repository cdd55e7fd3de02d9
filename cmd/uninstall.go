package cmd

import (
	"fmt"
	"pushsync/internal/autostart"

	"github.com/spf13/cobra"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the autostart registration",
	RunE: func(cmd *cobra.Command, args []string) error {
		as := autostart.New()

		installed, err := as.IsInstalled()
		if err != nil {
			return err
		}
		if !installed {
			fmt.Println("pushsync is not registered for autostart")
			return nil
		}

		if err := as.Uninstall(); err != nil {
			return err
		}

		fmt.Println("pushsync autostart removed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
