package model

import (
	"fmt"
	"regexp"
)

type Method string

const (
	MethodCopy Method = "copy"
	MethodFTP  Method = "ftp"
	MethodSCP  Method = "scp"
)

const (
	DefaultFTPPort = 21
	DefaultSCPPort = 22
)

// Command is run on the remote host after a successful SCP upload.
// "{path}" in Cmd is replaced with the destination path. When MatchingFile
// is set, only destinations it matches trigger the command.
type Command struct {
	Cmd          string         `json:"cmd"`
	MatchingFile *regexp.Regexp `json:"-"`
}

type Target struct {
	ID                      string
	Method                  Method
	Host                    string
	Port                    int
	Username                string
	Password                string
	KeyFile                 string
	KnownHostsFile          string
	TargetPath              string
	CreateTimestampedCopies bool
	UseSudoInCmds           bool
	Commands                []Command
}

func (t Target) Name() string {
	if t.Method == MethodCopy {
		return fmt.Sprintf("copy:%s", t.TargetPath)
	}

	return fmt.Sprintf("%s://%s@%s:%d", t.Method, t.Username, t.Host, t.Port)
}

func (t Target) Addr() string {
	return fmt.Sprintf("%s:%d", t.Host, t.Port)
}
