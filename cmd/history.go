package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"pushsync/internal/model"
	"strings"

	"github.com/spf13/cobra"
)

var (
	historyN      int
	historyFailed bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View upload history",
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fmt.Sprintf("%s?n=%d", daemonURL("/history"), historyN)
		if historyFailed {
			url = daemonURL("/history?failed=true")
		}

		resp, err := http.Get(url)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var histories []model.History
		if err := json.NewDecoder(resp.Body).Decode(&histories); err != nil {
			return err
		}

		if len(histories) == 0 {
			fmt.Println("no history yet")
			return nil
		}

		for _, h := range histories {
			mark := "✓"
			switch h.Status {
			case model.StatusFailed:
				mark = "✗"
			case model.StatusDeleted:
				mark = "-"
			}

			fmt.Printf("%s [%s] %-7s %s -> %s:%s\n",
				mark,
				h.FinishedAt.Format("2006-01-02 15:04:05"),
				h.Status,
				h.SrcPath,
				h.Target,
				h.DstPath,
			)

			if h.Status == model.StatusFailed {
				for _, line := range strings.Split(strings.TrimSpace(h.Messages), "\n") {
					fmt.Printf("    %s\n", line)
				}
			}
		}

		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyN, "n", 20, "number of history entries to show")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "show failed transfers only")
	rootCmd.AddCommand(historyCmd)
}
