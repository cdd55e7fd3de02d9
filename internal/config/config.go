package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"pushsync/internal/model"
	"pushsync/internal/pipeline"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type Config struct {
	LocalPath                string          `mapstructure:"local_path" yaml:"local_path"`
	LogPath                  string          `mapstructure:"log_path" yaml:"log_path"`
	ChangeListPath           string          `mapstructure:"change_list_path" yaml:"change_list_path"`
	DBPath                   string          `mapstructure:"db_path" yaml:"db_path"`
	DaemonPort               int             `mapstructure:"daemon_port" yaml:"daemon_port"`
	AllowMultiThreadedUpload bool            `mapstructure:"allow_multi_threaded_upload" yaml:"allow_multi_threaded_upload"`
	ExitRequestFile          string          `mapstructure:"exit_request_file" yaml:"exit_request_file"`
	PollInterval             time.Duration   `mapstructure:"poll_interval" yaml:"-"`
	RetryDelay               time.Duration   `mapstructure:"retry_delay" yaml:"-"`
	IgnorePatterns           []IgnorePattern `mapstructure:"ignore_patterns" yaml:"ignore_patterns"`
	Targets                  []TargetConfig  `mapstructure:"targets" yaml:"targets"`
}

type IgnorePattern struct {
	Type    string `mapstructure:"type" yaml:"type"`
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
}

type CommandConfig struct {
	Cmd          string `mapstructure:"cmd" yaml:"cmd"`
	MatchingFile string `mapstructure:"matching_file" yaml:"matching_file,omitempty"`
}

type TargetConfig struct {
	ID                      string          `mapstructure:"id" yaml:"id,omitempty"`
	Method                  string          `mapstructure:"method" yaml:"method"`
	Host                    string          `mapstructure:"host" yaml:"host,omitempty"`
	Port                    int             `mapstructure:"port" yaml:"port,omitempty"`
	Username                string          `mapstructure:"username" yaml:"username,omitempty"`
	Password                string          `mapstructure:"password" yaml:"password,omitempty"`
	KeyFile                 string          `mapstructure:"key_file" yaml:"key_file,omitempty"`
	KnownHostsFile          string          `mapstructure:"known_hosts_file" yaml:"known_hosts_file,omitempty"`
	TargetPath              string          `mapstructure:"target_path" yaml:"target_path"`
	CreateTimestampedCopies bool            `mapstructure:"create_timestamped_copies" yaml:"create_timestamped_copies"`
	UseSudoInCmds           bool            `mapstructure:"use_sudo_in_cmds" yaml:"use_sudo_in_cmds,omitempty"`
	Commands                []CommandConfig `mapstructure:"commands" yaml:"commands,omitempty"`
}

var DefaultIgnorePatterns = []IgnorePattern{
	{Type: string(pipeline.ScopeDirectory), Pattern: `[/\\]\.`},
	{Type: string(pipeline.ScopeFile), Pattern: `^\.`},
}

var Default = Config{
	DBPath:                   "pushsync.db",
	DaemonPort:               9001,
	AllowMultiThreadedUpload: true,
	ExitRequestFile:          ".pushsync-exit",
	PollInterval:             time.Second,
	RetryDelay:               0,
	IgnorePatterns:           DefaultIgnorePatterns,
}

// Load reads the YAML document at path. Environment variables prefixed with
// PUSHSYNC_ override top level keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("db_path", Default.DBPath)
	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("allow_multi_threaded_upload", Default.AllowMultiThreadedUpload)
	v.SetDefault("exit_request_file", Default.ExitRequestFile)
	v.SetDefault("poll_interval", Default.PollInterval)
	v.SetDefault("retry_delay", Default.RetryDelay)
	v.SetDefault("ignore_patterns", ignoreDefaults())

	v.SetEnvPrefix("PUSHSYNC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config file %s not found, run 'pushsync example' to generate one: %w", path, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.LocalPath != "" {
		abs, err := filepath.Abs(cfg.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("invalid local_path: %w", err)
		}
		cfg.LocalPath = abs
	}

	for i := range cfg.Targets {
		t := &cfg.Targets[i]
		t.Method = strings.ToLower(t.Method)
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.Port == 0 {
			switch model.Method(t.Method) {
			case model.MethodFTP:
				t.Port = model.DefaultFTPPort
			case model.MethodSCP:
				t.Port = model.DefaultSCPPort
			}
		}
	}

	return &cfg, nil
}

// Validate reports the configuration errors that must stop the process
// before anything is watched.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return MissingFieldError{Field: "targets"}
	}

	if c.LocalPath == "" {
		return MissingFieldError{Field: "local_path"}
	}

	info, err := os.Stat(c.LocalPath)
	if err != nil || !info.IsDir() {
		return NotFoundError{Path: c.LocalPath}
	}

	for i, t := range c.Targets {
		switch model.Method(t.Method) {
		case model.MethodCopy:
		case model.MethodFTP, model.MethodSCP:
			if t.Host == "" {
				return MissingFieldError{Field: fmt.Sprintf("targets[%d].host", i)}
			}
		default:
			return fmt.Errorf("targets[%d]: unknown method %q", i, t.Method)
		}

		if t.TargetPath == "" {
			return MissingFieldError{Field: fmt.Sprintf("targets[%d].target_path", i)}
		}
	}

	return nil
}

func (c *Config) BuildTargets() ([]model.Target, error) {
	targets := make([]model.Target, 0, len(c.Targets))

	for i, t := range c.Targets {
		cmds := make([]model.Command, 0, len(t.Commands))
		for j, cc := range t.Commands {
			cmd := model.Command{Cmd: cc.Cmd}
			if cc.MatchingFile != "" {
				re, err := regexp.Compile(cc.MatchingFile)
				if err != nil {
					return nil, fmt.Errorf("targets[%d].commands[%d]: invalid matching_file: %w", i, j, err)
				}
				cmd.MatchingFile = re
			}
			cmds = append(cmds, cmd)
		}

		targets = append(targets, model.Target{
			ID:                      t.ID,
			Method:                  model.Method(t.Method),
			Host:                    t.Host,
			Port:                    t.Port,
			Username:                t.Username,
			Password:                t.Password,
			KeyFile:                 t.KeyFile,
			KnownHostsFile:          t.KnownHostsFile,
			TargetPath:              t.TargetPath,
			CreateTimestampedCopies: t.CreateTimestampedCopies,
			UseSudoInCmds:           t.UseSudoInCmds,
			Commands:                cmds,
		})
	}

	return targets, nil
}

func (c *Config) BuildIgnoreFilter() (*pipeline.Filter, error) {
	patterns := make([]pipeline.Pattern, 0, len(c.IgnorePatterns))

	for i, p := range c.IgnorePatterns {
		scope := pipeline.Scope(strings.ToLower(p.Type))
		if scope != pipeline.ScopeDirectory && scope != pipeline.ScopeFile {
			return nil, fmt.Errorf("ignore_patterns[%d]: unknown type %q", i, p.Type)
		}

		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("ignore_patterns[%d]: %w", i, err)
		}

		patterns = append(patterns, pipeline.Pattern{Scope: scope, Regex: re})
	}

	return pipeline.NewFilter(patterns...), nil
}

func ignoreDefaults() []map[string]string {
	out := make([]map[string]string, 0, len(DefaultIgnorePatterns))
	for _, p := range DefaultIgnorePatterns {
		out = append(out, map[string]string{"type": p.Type, "pattern": p.Pattern})
	}

	return out
}
