package autostart

import (
	"runtime"
	"strings"
)

const serviceName = "pushsync"

type AutoStarter interface {
	Install(execPath, configPath string) error
	Uninstall() error
	IsInstalled() (bool, error)
}

func New() AutoStarter {
	switch runtime.GOOS {
	case "windows":
		return &WindowsAutoStarter{}
	case "linux":
		return &LinuxAutoStarter{}
	default:
		return &UnsupportedAutoStarter{}
	}
}

// CommandLine is the command registered to run at logon.
func CommandLine(execPath, configPath string) []string {
	return []string{execPath, "watch", "--config", configPath}
}

func quoteArgs(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		if strings.ContainsAny(a, " \t\"") {
			a = `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
		}
		quoted = append(quoted, a)
	}

	return strings.Join(quoted, " ")
}

type UnsupportedAutoStarter struct{}

func (u *UnsupportedAutoStarter) Install(_, _ string) error {
	return nil
}

func (u *UnsupportedAutoStarter) Uninstall() error {
	return nil
}

func (u *UnsupportedAutoStarter) IsInstalled() (bool, error) {
	return false, nil
}
