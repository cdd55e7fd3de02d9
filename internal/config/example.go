package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WriteExample writes a sample configuration to path with one target per
// transport method.
func WriteExample(path string) error {
	file, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home dir: %w", err)
	}

	base := strings.TrimSuffix(file, filepath.Ext(file))

	cfg := Default
	cfg.LocalPath = filepath.Join(home, "Development")
	cfg.LogPath = base + ".log"
	cfg.ChangeListPath = base + ".changes"
	cfg.DBPath = base + ".db"
	cfg.Targets = []TargetConfig{
		{
			Method:     "scp",
			Host:       "ssh.server.com",
			Port:       22,
			Username:   "devel",
			Password:   "devel-pass",
			TargetPath: "/usr/local/sf/",
			Commands: []CommandConfig{
				{Cmd: "chmod 644 {path}", MatchingFile: `\.php$`},
			},
		},
		{
			Method:     "ftp",
			Host:       "ftp.server.com",
			Port:       21,
			Username:   "designer",
			Password:   "mypass",
			TargetPath: "/home/www/html/",
		},
		{
			Method:                  "copy",
			TargetPath:              filepath.Join(home, "Backup"),
			CreateTimestampedCopies: true,
		},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal example: %w", err)
	}

	if err := os.WriteFile(file, data, 0600); err != nil {
		return fmt.Errorf("failed to write example: %w", err)
	}

	return nil
}
