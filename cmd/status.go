package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"pushsync/internal/model"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var snap model.DaemonSnapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		fmt.Printf("watching %s for %s, %d queued, %d in flight\n\n",
			snap.Root, time.Since(snap.StartedAt).Round(time.Second), snap.Queued, len(snap.Tasks))

		fmt.Printf("%-40s %-10s %-8s %-8s %s\n",
			"TARGET", "CONNECTED", "UPLOADED", "FAILED", "LAST UPLOAD")

		for _, t := range snap.Targets {
			lastSync := "-"
			if t.LastSync != nil {
				lastSync = t.LastSync.Format("2006-01-02 15:04:05")
			}

			fmt.Printf("%-40s %-10t %-8d %-8d %s\n",
				t.Name, t.Connected, t.Uploaded, t.Failed, lastSync)
		}

		if len(snap.Tasks) > 0 {
			fmt.Println()
			for _, t := range snap.Tasks {
				fmt.Printf("%-8s #%d %s -> %s:%s\n", t.Status, t.Attempt, t.Src, t.Target, t.Dst)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
