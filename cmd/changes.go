package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"pushsync/internal/ledger"

	"github.com/spf13/cobra"
)

var changesReset bool

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "List files uploaded since the change list was last reset",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.ChangeListPath == "" {
			return errors.New("change_list_path is not configured")
		}

		paths, err := changesFromDaemon()
		if err != nil {
			paths, err = changesFromFile()
		}
		if err != nil {
			return err
		}

		for _, p := range paths {
			fmt.Println(p)
		}

		return nil
	},
}

// changesFromDaemon asks the running daemon, which holds the ledger open.
func changesFromDaemon() ([]string, error) {
	if changesReset {
		req, err := http.NewRequest(http.MethodDelete, daemonURL("/changes"), nil)
		if err != nil {
			return nil, err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			return nil, fmt.Errorf("reset failed: %s", resp.Status)
		}
		return nil, nil
	}

	resp, err := http.Get(daemonURL("/changes"))
	if err != nil {
		return nil, err
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon returned %s", resp.Status)
	}

	var paths []string
	return paths, json.NewDecoder(resp.Body).Decode(&paths)
}

func changesFromFile() ([]string, error) {
	l, err := ledger.Open(cfg.ChangeListPath)
	if err != nil {
		return nil, err
	}

	defer func(l *ledger.Ledger) {
		_ = l.Close()
	}(l)

	if changesReset {
		return nil, l.Reset()
	}

	return l.List()
}

func init() {
	changesCmd.Flags().BoolVar(&changesReset, "reset", false, "clear the change list")
	rootCmd.AddCommand(changesCmd)
}
