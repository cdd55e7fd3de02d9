package daemon

import (
	"fmt"
	"path"
	"path/filepath"
	"pushsync/internal/model"
	"strings"

	"github.com/jonboulle/clockwork"
)

const timestampLayout = "20060102150405"

// Resolve maps a file under root to its destination on target. Remote roots
// written with forward slashes or backslashes keep that separator whatever
// the local OS.
// With CreateTimestampedCopies the current time is appended to the name.
func Resolve(src, root string, target model.Target, clock clockwork.Clock) (string, error) {
	rel, err := filepath.Rel(root, src)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s against %s: %w", src, root, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not inside %s", src, root)
	}

	var dst string
	switch {
	case strings.Contains(target.TargetPath, "/"):
		dst = path.Join(target.TargetPath, filepath.ToSlash(rel))
	case strings.Contains(target.TargetPath, `\`):
		dst = strings.TrimRight(target.TargetPath, `\`) + `\` + strings.ReplaceAll(filepath.ToSlash(rel), "/", `\`)
	default:
		dst = filepath.Join(target.TargetPath, rel)
	}

	if target.CreateTimestampedCopies {
		dst = dst + "_" + clock.Now().Format(timestampLayout)
	}

	return dst, nil
}
