package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var stopWait time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the running daemon to exit",
	Long: `Ask the running daemon to exit. Transfers already in progress are allowed
to finish, so the daemon may keep answering for a moment; use --wait to block
until it has gone away.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := requestStop(daemonURL(""))
		if err != nil {
			return err
		}
		fmt.Printf("daemon on port %d: %s\n", cfg.DaemonPort, status)

		if stopWait <= 0 {
			return nil
		}

		if err := waitForExit(daemonURL(""), stopWait, 100*time.Millisecond); err != nil {
			return err
		}
		fmt.Printf("daemon on port %d: stopped\n", cfg.DaemonPort)
		return nil
	},
}

// requestStop posts to the daemon's stop endpoint and returns the status it
// reports.
func requestStop(base string) (string, error) {
	resp, err := http.Post(base+"/stop", "application/json", nil)
	if err != nil {
		return "", fmt.Errorf("daemon not running: %w", err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stop failed: %s", resp.Status)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode stop response: %w", err)
	}

	return body.Status, nil
}

// waitForExit polls the status endpoint until the daemon stops answering.
func waitForExit(base string, timeout, interval time.Duration) error {
	client := &http.Client{Timeout: interval}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(base + "/status")
		if err != nil {
			return nil
		}
		_ = resp.Body.Close()

		time.Sleep(interval)
	}

	return fmt.Errorf("daemon still running after %s", timeout)
}

func init() {
	stopCmd.Flags().DurationVar(&stopWait, "wait", 0, "wait up to this long for the daemon to exit")
	rootCmd.AddCommand(stopCmd)
}
