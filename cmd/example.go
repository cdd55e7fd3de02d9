package cmd

import (
	"fmt"
	"pushsync/internal/config"

	"github.com/spf13/cobra"
)

var exampleCmd = &cobra.Command{
	Use:   "example [path]",
	Short: "Generate an example configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "example_pushsync.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		if err := config.WriteExample(path); err != nil {
			return err
		}

		fmt.Printf("%s was generated\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exampleCmd)
}
