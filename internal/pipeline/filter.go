package pipeline

import (
	"errors"
	"path/filepath"
	"regexp"
)

var ErrEmptyPath = errors.New("path can not be empty")

type Scope string

const (
	ScopeDirectory Scope = "directory"
	ScopeFile      Scope = "file"
)

// Pattern matches either the directory part or the file name of a path.
type Pattern struct {
	Scope Scope
	Regex *regexp.Regexp
}

type Filter struct {
	patterns []Pattern
}

func NewFilter(patterns ...Pattern) *Filter {
	return &Filter{patterns: patterns}
}

// ShouldIgnore reports whether any pattern matches its portion of path.
func (f *Filter) ShouldIgnore(path string) (bool, error) {
	if path == "" {
		return false, ErrEmptyPath
	}

	if f == nil || len(f.patterns) == 0 {
		return false, nil
	}

	dir := filepath.Dir(path)
	if dir == "." {
		dir = ""
	}
	name := filepath.Base(path)

	for _, p := range f.patterns {
		switch p.Scope {
		case ScopeDirectory:
			if dir != "" && p.Regex.MatchString(dir) {
				return true, nil
			}
		case ScopeFile:
			if p.Regex.MatchString(name) {
				return true, nil
			}
		}
	}

	return false, nil
}
